package repository

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/vme50/paygate/internal/models"
	"github.com/vme50/paygate/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // Use standard logger
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond, // Log queries slower than this
			LogLevel:                  gormLogger.Warn,        // Only log warnings or errors
			IgnoreRecordNotFoundError: true,                   // Suppress "record not found" errors
			Colorful:                  true,                   // Enable colorful logs
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(&models.Paywall{}, &models.Submission{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) CreatePaywall(paywall *models.Paywall) error {
	if err := db.Conn.Create(paywall).Error; err != nil {
		return fmt.Errorf("failed to create paywall: %s", err)
	}

	return nil
}

func (db *PostgresDB) GetPaywall(id string) (*models.Paywall, error) {
	var paywall models.Paywall
	if err := db.Conn.Where("id = ?", id).First(&paywall).Error; err != nil {
		return nil, fmt.Errorf("failed to get paywall: %w", err)
	}

	return &paywall, nil
}

func (db *PostgresDB) ListAllPaywalls() ([]*models.Paywall, error) {
	var paywalls []*models.Paywall
	if err := db.Conn.Order("created_at DESC").Find(&paywalls).Error; err != nil {
		return nil, fmt.Errorf("failed to list paywalls: %s", err)
	}

	return paywalls, nil
}

func (db *PostgresDB) ListPaywallsByCreator(creatorAddress string) ([]*models.Paywall, error) {
	var paywalls []*models.Paywall
	if err := db.Conn.Where("creator_address = ?", creatorAddress).
		Order("created_at DESC").
		Find(&paywalls).Error; err != nil {
		return nil, fmt.Errorf("failed to list paywalls by creator: %s", err)
	}

	return paywalls, nil
}

func (db *PostgresDB) CreateSubmission(submission *models.Submission) error {
	if err := db.Conn.Create(submission).Error; err != nil {
		return fmt.Errorf("failed to create submission: %s", err)
	}

	return nil
}

func (db *PostgresDB) ListAllSubmissions() ([]*models.Submission, error) {
	var submissions []*models.Submission
	if err := db.Conn.Order("created_at DESC").Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions: %s", err)
	}

	return submissions, nil
}

func (db *PostgresDB) ListSubmissionsByCreator(creatorAddress string) ([]*models.SubmissionWithPaywall, error) {
	var submissions []*models.SubmissionWithPaywall
	if err := db.Conn.Table("submissions").
		Select("submissions.*, paywalls.title AS paywall_title, paywalls.price AS paywall_price, paywalls.currency AS paywall_currency").
		Joins("JOIN paywalls ON paywalls.id = submissions.paywall_id").
		Where("paywalls.creator_address = ?", creatorAddress).
		Order("submissions.created_at DESC").
		Scan(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions by creator: %s", err)
	}

	return submissions, nil
}

func (db *PostgresDB) ListSubmissionsByWallet(walletAddress string) ([]*models.Submission, error) {
	var submissions []*models.Submission
	// Wallet addresses come in mixed case from clients; match case-insensitively
	if err := db.Conn.Where("LOWER(wallet_address) = LOWER(?)", walletAddress).
		Order("created_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions by wallet: %s", err)
	}

	return submissions, nil
}
