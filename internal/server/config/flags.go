package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/shopkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-o int      one-time code validity, minutes
//	-m int      one-time code attempts
//	-l int      minimum password length
//	-k string   one-time code store: postgres or redis
//	-x string   redis address
//	-w string   redis password
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-seed       create demo accounts on startup
//
// Duration flags are whole minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-t", "-r", "-o", "-m", "-l", "-k", "-x", "-w",
		"-u", "-p", "-b", "-g", "-e", "-seed",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	otpValidityDuration := fs.Int("o", int(config.OTPValidityDuration.Minutes()), "one-time code validity (in minutes)")

	fs.IntVar(&config.OTPMaxAttempts, "m", config.OTPMaxAttempts, "one-time code attempts")
	fs.IntVar(&config.PasswordMinLength, "l", config.PasswordMinLength, "minimum password length")
	fs.StringVar(&config.OTPStore, "k", config.OTPStore, "one-time code store (postgres|redis)")
	fs.StringVar(&config.RedisAddr, "x", config.RedisAddr, "redis address")
	fs.StringVar(&config.RedisPassword, "w", config.RedisPassword, "redis password")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.BoolVar(&config.SeedDemoAccounts, "seed", config.SeedDemoAccounts, "create demo accounts")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.OTPValidityDuration = time.Duration(*otpValidityDuration) * time.Minute
}
