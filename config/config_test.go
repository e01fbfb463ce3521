package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	unsetEnv(t, "MYSQL_DSN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/billing?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "billing-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_MAX_IDLE_CONNS", "8")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "STRIPE_SECRET_KEY", "sk_test_123")
	setEnv(t, "STRIPE_HTTP_TIMEOUT_SECONDS", "15")
	setEnv(t, "BILLING_CURRENCY", "KES")
	setEnv(t, "BILLING_TERM_FEE_CENTS", "2500000")
	setEnv(t, "BILLING_STATUS_WINDOW_DAYS", "120")
	setEnv(t, "BILLING_JOB_BATCH_SIZE", "99")
	setEnv(t, "BILLING_TRIAL_RECONCILE_INTERVAL_MINUTES", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "billing-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" {
		t.Fatalf("unexpected http port: %s", cfg.HTTP.Port)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.MaxIdleConns != 8 {
		t.Fatalf("unexpected mysql pool config: %+v", cfg.MySQL)
	}
	if cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql lifetime: %v", cfg.MySQL.ConnMaxLifetime)
	}
	if cfg.Stripe.SecretKey != "sk_test_123" {
		t.Fatalf("unexpected stripe secret key: %s", cfg.Stripe.SecretKey)
	}
	if cfg.Stripe.HTTPTimeout != 15*time.Second {
		t.Fatalf("unexpected stripe timeout: %v", cfg.Stripe.HTTPTimeout)
	}
	if cfg.Billing.Currency != "KES" {
		t.Fatalf("unexpected billing currency: %s", cfg.Billing.Currency)
	}
	if cfg.Billing.TermFeeCents != 2500000 {
		t.Fatalf("unexpected term fee: %d", cfg.Billing.TermFeeCents)
	}
	if cfg.Billing.StatusWindowDays != 120 {
		t.Fatalf("unexpected status window: %d", cfg.Billing.StatusWindowDays)
	}
	if cfg.Billing.JobBatchSize != 99 {
		t.Fatalf("unexpected job batch size: %d", cfg.Billing.JobBatchSize)
	}
	if cfg.Jobs.TrialReconcileInterval != 30*time.Minute {
		t.Fatalf("unexpected reconcile interval: %v", cfg.Jobs.TrialReconcileInterval)
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/billing?parseTime=true")
	unsetEnv(t, "BILLING_CURRENCY")
	unsetEnv(t, "BILLING_TERM_FEE_CENTS")
	unsetEnv(t, "BILLING_STATUS_WINDOW_DAYS")
	unsetEnv(t, "STRIPE_BASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Billing.Currency != "USD" {
		t.Fatalf("unexpected default currency: %s", cfg.Billing.Currency)
	}
	if cfg.Billing.TermFeeCents != 15000 {
		t.Fatalf("unexpected default term fee: %d", cfg.Billing.TermFeeCents)
	}
	if cfg.Billing.StatusWindowDays != 90 {
		t.Fatalf("unexpected default status window: %d", cfg.Billing.StatusWindowDays)
	}
	if cfg.Stripe.BaseURL != "https://api.stripe.com" {
		t.Fatalf("unexpected default stripe base url: %s", cfg.Stripe.BaseURL)
	}
}
