package db

import (
	log15 "github.com/inconshreveable/log15/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

var log = log15.New("module", "db")

// Init connects to Postgres and migrates the mirror schema. TranslateError
// is on so unique violations surface as gorm.ErrDuplicatedKey.
func Init(databaseURL string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := gdb.AutoMigrate(&User{}, &Channel{}, &Message{}, &Reaction{}); err != nil {
		return nil, err
	}

	DB = gdb
	log.Info("connected to database")
	return gdb, nil
}
