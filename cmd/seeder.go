package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/credit-marketplace/internal/auth"
	"github.com/frahmantamala/credit-marketplace/internal/core/database"
	txDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/transaction"
	userDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/user"
)

var seedUsers = []struct {
	Email   string
	Name    string
	Credits int64
}{
	{"demo@mail.com", "Demo User", 5},
	{"buyer@mail.com", "Buyer", 0},
}

const seedPassword = "password123"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with demo accounts for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := database.OpenGorm(sqlDB.DB)
		if err != nil {
			log.Fatalf("failed to open gorm: %v", err)
		}

		if err := seed(context.Background(), db, cfg.Security.BCryptCost, clearData); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	},
}

func seed(ctx context.Context, db *gorm.DB, cost int, clear bool) error {
	hash, err := auth.HashPassword(seedPassword, cost)
	if err != nil {
		return err
	}

	return database.NewTransactor(db).WithinTransaction(ctx, func(ctx context.Context) error {
		tx := database.Conn(ctx, db)

		for _, su := range seedUsers {
			if clear {
				var existing userDatamodel.User
				err := tx.Where("email = ?", su.Email).First(&existing).Error
				if err == nil {
					if err := tx.Where("user_id = ?", existing.ID).Delete(&txDatamodel.Transaction{}).Error; err != nil {
						return fmt.Errorf("clear transactions for %s: %w", su.Email, err)
					}
					if err := tx.Delete(&existing).Error; err != nil {
						return fmt.Errorf("clear user %s: %w", su.Email, err)
					}
					fmt.Println("Cleared user:", su.Email)
				} else if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
			}

			var count int64
			if err := tx.Model(&userDatamodel.User{}).Where("email = ?", su.Email).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				fmt.Println("user already exists:", su.Email)
				continue
			}

			u := &userDatamodel.User{
				Email:         su.Email,
				Name:          su.Name,
				PasswordHash:  hash,
				CreditBalance: su.Credits,
			}
			if err := tx.Create(u).Error; err != nil {
				return fmt.Errorf("insert user %s: %w", su.Email, err)
			}
			fmt.Printf("Seeded user: %s (password %q, %d credits)\n", su.Email, seedPassword, su.Credits)
		}
		return nil
	})
}
