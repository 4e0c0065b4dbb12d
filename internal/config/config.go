// Package config loads runtime settings from the environment, with an
// optional .env file and a subscription-file fallback for credentials.
package config

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config holds provider credentials, storage paths and fetch tuning.
type Config struct {
	// Provider (Xtream API)
	ProviderBaseURL string // e.g. http://provider:8080
	ProviderUser    string
	ProviderPass    string

	// ServerID keys all per-server state (cache, visibility, favorites).
	// Defaults to a digest of base URL + username so the same subscription
	// maps to the same state across restarts.
	ServerID string

	// DBPath is the sqlite database holding the cache and KV state.
	DBPath string

	// HTTP tuning
	Timeout      time.Duration // per-request timeout for catalog calls
	ProbeTimeout time.Duration // shorter timeout for connectivity probes
	Retries      int           // retry attempts after timeout/network failures
	RetryDelay   time.Duration
	// HostConcurrency caps simultaneous requests to one provider host.
	HostConcurrency int

	// Refresh tuning
	PaceInterval time.Duration // minimum gap between category item fetches
	DoneLinger   time.Duration // how long the "Done" phase stays visible
}

// Load reads config from environment. Call LoadEnvFile(".env") before Load()
// to use a .env file. When ProviderUser or ProviderPass are empty, Load tries
// IPTV_DECK_SUBSCRIPTION_FILE (or the default path) with "Username:" /
// "Password:" lines.
func Load() *Config {
	c := &Config{
		ProviderBaseURL: os.Getenv("IPTV_DECK_PROVIDER_URL"),
		ProviderUser:    os.Getenv("IPTV_DECK_PROVIDER_USER"),
		ProviderPass:    os.Getenv("IPTV_DECK_PROVIDER_PASS"),
		ServerID:        os.Getenv("IPTV_DECK_SERVER_ID"),
		DBPath:          getEnv("IPTV_DECK_DB", "./iptv-deck.db"),
		Timeout:         getEnvDuration("IPTV_DECK_TIMEOUT", 30*time.Second),
		ProbeTimeout:    getEnvDuration("IPTV_DECK_PROBE_TIMEOUT", 15*time.Second),
		Retries:         getEnvInt("IPTV_DECK_RETRIES", 2),
		RetryDelay:      getEnvDuration("IPTV_DECK_RETRY_DELAY", time.Second),
		HostConcurrency: getEnvInt("IPTV_DECK_HOST_CONCURRENCY", 4),
		PaceInterval:    getEnvDuration("IPTV_DECK_PACE_INTERVAL", 200*time.Millisecond),
		DoneLinger:      getEnvDuration("IPTV_DECK_DONE_LINGER", 2*time.Second),
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 15 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.HostConcurrency <= 0 {
		c.HostConcurrency = 4
	}
	// Subscription file fallback ("Username: x" / "Password: x" lines).
	if c.ProviderUser == "" || c.ProviderPass == "" {
		if user, pass, err := readSubscriptionFile(getEnv("IPTV_DECK_SUBSCRIPTION_FILE", "")); err == nil {
			if c.ProviderUser == "" {
				c.ProviderUser = user
			}
			if c.ProviderPass == "" {
				c.ProviderPass = pass
			}
		}
	}
	if c.ServerID == "" {
		c.ServerID = ServerKey(c.ProviderBaseURL, c.ProviderUser)
	}
	return c
}

// ServerKey derives a short stable id for a (base URL, user) pair.
func ServerKey(baseURL, user string) string {
	sum := sha256.Sum256([]byte(strings.TrimSuffix(baseURL, "/") + "|" + user))
	return hex.EncodeToString(sum[:])[:8]
}

// readSubscriptionFile reads "Username: x" and "Password: x" from path.
// When path is empty, globs ~/Documents/iptv.subscription.*.txt and uses the
// alphabetically last match (highest year), so the file keeps working across
// year-end renewals.
func readSubscriptionFile(path string) (user, pass string, err error) {
	if path == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return "", "", os.ErrNotExist
		}
		pattern := filepath.Join(home, "Documents", "iptv.subscription.*.txt")
		matches, globErr := filepath.Glob(pattern)
		if globErr != nil || len(matches) == 0 {
			return "", "", os.ErrNotExist
		}
		sort.Strings(matches)
		path = matches[len(matches)-1]
	}
	path = filepath.Clean(path)
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "Username:") {
			user = strings.TrimSpace(strings.TrimPrefix(line, "Username:"))
		} else if strings.HasPrefix(line, "Password:") {
			pass = strings.TrimSpace(strings.TrimPrefix(line, "Password:"))
		}
	}
	if err := sc.Err(); err != nil {
		return "", "", err
	}
	if user == "" || pass == "" {
		return "", "", fmt.Errorf("subscription file: missing Username or Password")
	}
	return user, pass, nil
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	if c.ProviderBaseURL == "" {
		return fmt.Errorf("IPTV_DECK_PROVIDER_URL is required")
	}
	if c.ProviderUser == "" || c.ProviderPass == "" {
		return fmt.Errorf("provider credentials are required (env or subscription file)")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
