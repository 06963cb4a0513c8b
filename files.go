package register

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

//go:embed templates/emails
var emailTemplatesFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// GetEmailTemplatesFS returns the email template files for this package
func GetEmailTemplatesFS() embed.FS {
	return emailTemplatesFS
}
