package config

import (
	"flag"
	"os"
	"time"

	"github.com/moviemate/authkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-d string   PostgreSQL DSN
//	-s string   access-token HMAC secret
//	-k string   refresh-token HMAC secret
//	-x string   token hash pepper
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-l int      rate-limit ceiling per window
//	-w int      rate-limit window, seconds
//	-e string   Redis address for the shared rate limiter ("" = in-memory)
//	-n int      retention window for revoked records, days
//	-i int      sweep interval, minutes
//	-p          production mode (enables the unsafe-defaults guard)
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers and converted to time.Duration.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-k", "-x", "-t", "-r", "-l", "-w", "-e", "-n", "-i", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "k", config.RefreshTokenSecret, "refresh token secret")
	fs.StringVar(&config.TokenHashPepper, "x", config.TokenHashPepper, "token hash pepper")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.IntVar(&config.RateLimitMax, "l", config.RateLimitMax, "rate limit ceiling per window")
	rateLimitWindow := fs.Int("w", int(config.RateLimitWindow.Seconds()), "rate_limit_window (in seconds)")

	fs.StringVar(&config.RedisAddr, "e", config.RedisAddr, "redis address for the rate limiter")

	retentionWindow := fs.Int("n", int(config.RetentionWindow.Hours()/24), "retention_window (in days)")
	sweepInterval := fs.Int("i", int(config.SweepInterval.Minutes()), "sweep_interval (in minutes)")

	fs.BoolVar(&config.ProductionMode, "p", config.ProductionMode, "production mode")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.RateLimitWindow = time.Duration(*rateLimitWindow) * time.Second
	config.RetentionWindow = time.Duration(*retentionWindow) * 24 * time.Hour
	config.SweepInterval = time.Duration(*sweepInterval) * time.Minute
}
