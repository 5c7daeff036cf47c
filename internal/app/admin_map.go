package app

import (
	"fmt"
	"net"
	"strings"
	"time"

	"cronwork/internal/admin"
)

// mapAdminConfig validates and converts the admin section. It never starts
// the server.
func mapAdminConfig(cfg *Config) (admin.Config, error) {
	var out admin.Config
	if cfg == nil {
		return out, nil
	}
	ac := cfg.Admin

	out.Enabled = ac.Enabled
	out.AllowInsecure = ac.AllowInsecure
	out.Token = strings.TrimSpace(ac.Token)
	out.Addr = strings.TrimSpace(ac.Addr)
	if out.Addr == "" {
		out.Addr = admin.DefaultAddr
	}

	if ac.RatePerSec < 0 {
		return out, fmt.Errorf("admin.rate_per_sec must be >= 0")
	}
	if ac.Burst < 0 {
		return out, fmt.Errorf("admin.burst must be >= 0")
	}
	out.RatePerSec = ac.RatePerSec
	out.Burst = ac.Burst

	readTO, err := parseDurationOrDefault("admin.read_timeout", ac.ReadTimeout, 5*time.Second)
	if err != nil {
		return out, err
	}
	writeTO, err := parseDurationOrDefault("admin.write_timeout", ac.WriteTimeout, 10*time.Second)
	if err != nil {
		return out, err
	}
	idleTO, err := parseDurationOrDefault("admin.idle_timeout", ac.IdleTimeout, 120*time.Second)
	if err != nil {
		return out, err
	}
	out.ReadTimeout, out.WriteTimeout, out.IdleTimeout = readTO, writeTO, idleTO

	if out.Enabled {
		if _, _, err := net.SplitHostPort(out.Addr); err != nil {
			return out, fmt.Errorf("admin.addr: invalid %q (expected host:port): %w", out.Addr, err)
		}
		// Refuse a public bind without explicit opt-in.
		if !out.AllowInsecure && out.Token == "" && !admin.IsLoopbackAddr(out.Addr) {
			return out, fmt.Errorf("admin: binding to non-loopback addr requires token or allow_insecure=true")
		}
	}
	return out, nil
}
