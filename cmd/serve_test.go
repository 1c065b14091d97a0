package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/api"
	"github.com/khanhnv2901/seca-recon/internal/application/assessment"
	"github.com/khanhnv2901/seca-recon/internal/checker"
	"github.com/khanhnv2901/seca-recon/internal/infrastructure/cache"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
	"go.uber.org/zap/zaptest"
)

type fakeAssessor struct {
	networkReq assessment.NetworkRequest
	vulnReq    assessment.VulnRequest
	website    string
	err        error
}

func (f *fakeAssessor) NetworkScan(ctx context.Context, req assessment.NetworkRequest) (*checker.PortScanReport, error) {
	f.networkReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &checker.PortScanReport{OK: true, Target: req.Target}, nil
}

func (f *fakeAssessor) VulnLite(ctx context.Context, req assessment.VulnRequest) (*assessment.VulnReport, error) {
	f.vulnReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &assessment.VulnReport{OK: true, Host: "example.com"}, nil
}

func (f *fakeAssessor) Website(ctx context.Context, rawURL string) (*checker.WebsiteReport, error) {
	f.website = rawURL
	if f.err != nil {
		return nil, f.err
	}
	return &checker.WebsiteReport{OK: true}, nil
}

func waitForJob(t *testing.T, svc *jobAPIService, id string) *api.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if job.Status == api.JobDone || job.Status == api.JobError {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return nil
}

func TestJobAPIService_RunsEachJobType(t *testing.T) {
	tests := []struct {
		name       string
		req        api.JobRequest
		wantType   string
		wantTarget string
		check      func(t *testing.T, f *fakeAssessor, job *api.Job)
	}{
		{
			name:       "scan is the default type",
			req:        api.JobRequest{Target: " example.com ", Ports: "22,80", Timeout: "1000"},
			wantType:   api.JobTypeScan,
			wantTarget: "example.com",
			check: func(t *testing.T, f *fakeAssessor, job *api.Job) {
				if f.networkReq.Ports != "22,80" || f.networkReq.Timeout != "1000" {
					t.Fatalf("unexpected network request: %+v", f.networkReq)
				}
				if _, ok := job.Result.(*checker.PortScanReport); !ok {
					t.Fatalf("expected port scan result, got %T", job.Result)
				}
			},
		},
		{
			name:       "website",
			req:        api.JobRequest{Type: "Website", URL: "example.com"},
			wantType:   api.JobTypeWebsite,
			wantTarget: "example.com",
			check: func(t *testing.T, f *fakeAssessor, job *api.Job) {
				if f.website != "example.com" {
					t.Fatalf("unexpected website url %q", f.website)
				}
			},
		},
		{
			name:       "vuln_lite by software",
			req:        api.JobRequest{Type: "vuln_lite", Software: "nginx/1.18.0"},
			wantType:   api.JobTypeVulnLite,
			wantTarget: "nginx/1.18.0",
			check: func(t *testing.T, f *fakeAssessor, job *api.Job) {
				if f.vulnReq.Software != "nginx/1.18.0" || f.vulnReq.URL != "" {
					t.Fatalf("unexpected vuln request: %+v", f.vulnReq)
				}
				if _, ok := job.Result.(*assessment.VulnReport); !ok {
					t.Fatalf("expected vuln report result, got %T", job.Result)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAssessor{}
			svc := newJobAPIService(api.NewJobManager(), fake, zaptest.NewLogger(t))

			job, err := svc.StartJob(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("StartJob() error = %v", err)
			}
			if job.Type != tt.wantType || job.Target != tt.wantTarget {
				t.Fatalf("unexpected job: %+v", job)
			}

			done := waitForJob(t, svc, job.ID)
			if done.Status != api.JobDone || done.StartedAt == nil || done.FinishedAt == nil {
				t.Fatalf("unexpected finished job: %+v", done)
			}
			tt.check(t, fake, done)
		})
	}
}

func TestJobAPIService_Validation(t *testing.T) {
	svc := newJobAPIService(api.NewJobManager(), &fakeAssessor{}, nil)
	ctx := context.Background()

	cases := []struct {
		req  api.JobRequest
		want error
	}{
		{api.JobRequest{Type: "scan"}, sharedErrors.ErrTargetRequired},
		{api.JobRequest{Type: "website"}, sharedErrors.ErrInvalidURL},
		{api.JobRequest{Type: "vuln_lite"}, sharedErrors.ErrMissingInput},
		{api.JobRequest{Type: "http", Target: "example.com"}, sharedErrors.ErrUnsupportedKind},
	}
	for _, c := range cases {
		if _, err := svc.StartJob(ctx, c.req); !errors.Is(err, c.want) {
			t.Fatalf("StartJob(%+v) error = %v, want %v", c.req, err, c.want)
		}
	}
	if jobs, _ := svc.ListJobs(ctx, 0); len(jobs) != 0 {
		t.Fatalf("rejected requests must not create jobs, got %d", len(jobs))
	}
	if _, err := svc.GetJob(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestJobAPIService_RecordsFailures(t *testing.T) {
	fake := &fakeAssessor{err: sharedErrors.ErrBlockedTarget}
	svc := newJobAPIService(api.NewJobManager(), fake, zaptest.NewLogger(t))

	updates, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	job, err := svc.StartJob(context.Background(), api.JobRequest{Target: "10.0.0.1"})
	if err != nil {
		t.Fatalf("StartJob() error = %v", err)
	}
	done := waitForJob(t, svc, job.ID)
	if done.Status != api.JobError || done.Error != sharedErrors.ErrBlockedTarget.Error() || done.Result != nil {
		t.Fatalf("unexpected failed job: %+v", done)
	}

	select {
	case update := <-updates:
		if update.ID != job.ID {
			t.Fatalf("unexpected update for %s", update.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected job updates on the subscription")
	}
}

type failingStore struct {
	cache.Store
}

func (failingStore) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestHealthAPIService(t *testing.T) {
	ctx := context.Background()

	healthy := &healthAPIService{cache: cache.NewMemoryStore(time.Minute, 10)}
	if err := healthy.Check(ctx); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if err := healthy.Ready(ctx); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}

	if err := (&healthAPIService{}).Ready(ctx); err == nil {
		t.Fatal("expected not ready without a cache")
	}
	if err := (&healthAPIService{cache: failingStore{}}).Ready(ctx); err == nil {
		t.Fatal("expected not ready when the cache ping fails")
	}
}
