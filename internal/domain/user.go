package domain

import "time"

// User is an account that can create and claim tips.
type User struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Name       string    `json:"name"`
	Email      string    `gorm:"uniqueIndex" json:"email"`
	AvatarURL  string    `json:"avatar_url"`
	AvatarPath string    `json:"-"` // local cached copy, see infra.AvatarDownloader
	Locale     string    `gorm:"default:'en'" json:"locale"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PublicProfile returns the tipper-facing view of the user.
func (u *User) PublicProfile() PublicTipper {
	return PublicTipper{Name: u.Name, AvatarURL: u.AvatarURL}
}
