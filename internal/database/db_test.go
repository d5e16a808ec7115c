package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	dsn := Config{
		User:     "auction",
		Password: "s3cret",
		Host:     "127.0.0.1",
		Port:     "3306",
		Name:     "campusbid",
	}.dsn()

	assert.Contains(t, dsn, "auction:s3cret@tcp(127.0.0.1:3306)/campusbid")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}
