package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string
type InformeStatus string

const (
	RoleAdmin   UserRole = "admin"
	RoleUsuario UserRole = "usuario"

	InformeBorrador   InformeStatus = "borrador"
	InformeFinalizado InformeStatus = "finalizado"
)

// User es un orientador (o admin) de la plataforma.
// Una cuenta solo-OAuth tiene PasswordHash vacío.
type User struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key;"`
	Name            string     `gorm:"size:255;not null"`
	Email           string     `gorm:"size:255;not null"` // único por índice LOWER(email)
	PasswordHash    string     `gorm:"size:255;not null;default:''"`
	Role            UserRole   `gorm:"type:varchar(20);not null;default:'usuario'"`
	EmailVerifiedAt *time.Time `gorm:""`
	SSOProvider     string     `gorm:"size:50;not null;default:''"`
	SocialLoginID   string     `gorm:"size:100;not null;default:''"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Informes        []Informe       `gorm:"foreignKey:UserID"`
	TrustedDevices  []TrustedDevice `gorm:"foreignKey:UserID"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}

// IsVerified indica si la cuenta confirmó su email (o entró por OAuth).
func (user *User) IsVerified() bool {
	return user.EmailVerifiedAt != nil
}

// TrustedDevice vincula un identificador de navegador con una cuenta.
// Se crea solo tras consumir un token de verificación de dispositivo.
type TrustedDevice struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`
	DeviceID   string    `gorm:"size:128;not null"`
	LastSeenAt time.Time
	CreatedAt  time.Time
	User       User `gorm:"foreignKey:UserID"`
}

func (td *TrustedDevice) BeforeCreate(tx *gorm.DB) (err error) {
	if td.ID == uuid.Nil {
		td.ID = uuid.New()
	}
	return
}

// Informe es un informe psicopedagógico de un orientador.
type Informe struct {
	ID          uuid.UUID     `gorm:"type:uuid;primary_key;"`
	UserID      uuid.UUID     `gorm:"type:uuid;not null;index"`
	Title       string        `gorm:"size:255;not null"`
	StudentName string        `gorm:"size:255;not null;default:''"`
	Content     string        `gorm:"type:text;not null;default:''"`
	Status      InformeStatus `gorm:"type:varchar(20);not null;default:'borrador'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	User        User `gorm:"foreignKey:UserID"`
}

func (inf *Informe) BeforeCreate(tx *gorm.DB) (err error) {
	if inf.ID == uuid.Nil {
		inf.ID = uuid.New()
	}
	return
}

// AutoMigrateDB migra el esquema automáticamente. Solo para el comando de
// setup y entornos de desarrollo; en producción mandan las migraciones SQL.
func AutoMigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&EmailVerificationToken{},
		&PasswordResetToken{},
		&DeviceVerificationToken{},
		&TrustedDevice{},
		&Informe{},
	)
}
