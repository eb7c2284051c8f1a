package health

import (
	"context"
	"errors"
	"testing"
)

func TestRunAndReport(t *testing.T) {
	svc := NewService()
	svc.Register("database", func(ctx context.Context) error { return nil })
	svc.Register("provider", func(ctx context.Context) error { return errors.New("unreachable") })

	if svc.Run(context.Background()) {
		t.Error("Run returned true with a failing check")
	}

	report := svc.Report()
	if len(report) != 2 {
		t.Fatalf("report has %d entries, want 2", len(report))
	}
	if report[0].Name != "database" || report[0].Status != StatusHealthy {
		t.Errorf("database entry = %+v", report[0])
	}
	if report[1].Name != "provider" || report[1].Status != StatusUnhealthy || report[1].LastError != "unreachable" {
		t.Errorf("provider entry = %+v", report[1])
	}
}

func TestRecovery(t *testing.T) {
	svc := NewService()
	healthy := false
	svc.Register("flappy", func(ctx context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	})

	svc.Run(context.Background())
	healthy = true
	if !svc.Run(context.Background()) {
		t.Error("Run returned false after recovery")
	}
	if got := svc.Report()[0]; got.Status != StatusHealthy || got.LastError != "" {
		t.Errorf("entry after recovery = %+v", got)
	}
}

func TestUnregisteredServiceIsHealthy(t *testing.T) {
	svc := NewService()
	if !svc.Run(context.Background()) {
		t.Error("empty service should report healthy")
	}
	if len(svc.Report()) != 0 {
		t.Error("empty service should report no components")
	}
}
