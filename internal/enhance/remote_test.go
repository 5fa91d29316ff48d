package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"podpress/internal/mix"
	"podpress/pkg/logger"
	"podpress/pkg/types"
)

// fakeService emulates the enhancement API for tests.
type fakeService struct {
	mu sync.Mutex

	durationMs    int
	mixStatus     int // response code for mix submissions, 0 = accept
	enhanceStatus int // response code for enhance submissions, 0 = accept
	jobOutcome    JobStatus

	inputs      int
	mixJobs     int
	enhanceJobs int
	downloads   int
	lastMix     []Segment
	outputData  []byte
}

func (s *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	})
	mux.HandleFunc("POST /v1/media/inputs", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.inputs++
		n := s.inputs
		s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"media_url": fmt.Sprintf("svc://in/%d", n)})
	})
	mux.HandleFunc("POST /v1/media/outputs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"media_url": "svc://out/1"})
	})
	mux.HandleFunc("POST /v1/media/analyze", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"duration_ms": s.durationMs})
	})
	mux.HandleFunc("POST /v1/mix", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.mixJobs++
		s.mu.Unlock()
		if s.mixStatus != 0 {
			w.WriteHeader(s.mixStatus)
			return
		}
		var req struct {
			Segments []Segment `json:"segments"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.lastMix = req.Segments
		s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"job_id": "job-mix"})
	})
	mux.HandleFunc("POST /v1/enhance", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.enhanceJobs++
		s.mu.Unlock()
		if s.enhanceStatus != 0 {
			w.WriteHeader(s.enhanceStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"job_id": "job-enh"})
	})
	mux.HandleFunc("GET /v1/jobs/", func(w http.ResponseWriter, r *http.Request) {
		outcome := s.jobOutcome
		if outcome == "" {
			outcome = JobSuccess
		}
		json.NewEncoder(w).Encode(map[string]string{"status": string(outcome), "error": "boom"})
	})
	mux.HandleFunc("GET /v1/media/download", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.downloads++
		s.mu.Unlock()
		w.Write(s.outputData)
	})
	return mux
}

func testAudioConfig() types.AudioConfig {
	return types.AudioConfig{
		IntroDurationMs: 50000,
		OutroDurationMs: 30000,
		FadeInMs:        1000,
		FadeOutMs:       3000,
		MusicVolumeDb:   -10,
		SampleRate:      44100,
	}
}

func newTestRemote(t *testing.T, svc *fakeService) (*Remote, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(svc.handler())
	t.Cleanup(server.Close)

	client := NewClient(types.EnhancementConfig{
		Endpoint:  server.URL,
		APIKey:    "key",
		APISecret: "secret",
	}, logger.Nop())
	client.pollInterval = time.Millisecond
	client.pollAttempts = 3

	return NewRemote(client, testAudioConfig(), logger.Nop()), server
}

func testSource() mix.Source {
	return mix.Source{
		NarrationURL:  "http://store/narration.wav",
		IntroMusicURL: "http://store/intro.mp3",
		OutroMusicURL: "http://store/outro.mp3",
	}
}

func TestRemoteComposeTimeline(t *testing.T) {
	svc := &fakeService{durationMs: 600000, outputData: []byte("rendered audio")}
	remote, _ := newTestRemote(t, svc)

	data, err := remote.Compose(context.Background(), testSource())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if string(data) != "rendered audio" {
		t.Errorf("downloaded %q", data)
	}
	if svc.mixJobs != 1 || svc.enhanceJobs != 0 {
		t.Errorf("mix jobs = %d, enhance jobs = %d; want 1 and 0", svc.mixJobs, svc.enhanceJobs)
	}

	if len(svc.lastMix) != 3 {
		t.Fatalf("timeline has %d segments, want 3", len(svc.lastMix))
	}
	intro, narration, outro := svc.lastMix[0], svc.lastMix[1], svc.lastMix[2]

	if intro.DestinationMs != 0 || intro.DurationMs != 50000 {
		t.Errorf("intro placement = dest %d dur %d", intro.DestinationMs, intro.DurationMs)
	}
	if got := intro.Envelope[len(intro.Envelope)-1].GainDb; got != silenceDb {
		t.Errorf("intro must fade to silence, final gain = %v", got)
	}
	if narration.DurationMs != 600000 || narration.Envelope[0].GainDb != 0 {
		t.Errorf("narration = %+v", narration)
	}
	if outro.DestinationMs != 600000-30000 {
		t.Errorf("outro destination = %d, want %d", outro.DestinationMs, 570000)
	}
	if outro.Envelope[0].GainDb != silenceDb || outro.Envelope[len(outro.Envelope)-1].GainDb != -10 {
		t.Errorf("outro envelope = %+v", outro.Envelope)
	}
}

func TestBuildTimelineFullBedFades(t *testing.T) {
	// Fades spanning the whole bed would place two control points at
	// the same offset; those collapse so offsets stay strictly
	// increasing.
	cfg := testAudioConfig()
	cfg.FadeOutMs = cfg.IntroDurationMs
	cfg.FadeInMs = cfg.OutroDurationMs
	remote := NewRemote(nil, cfg, logger.Nop())

	segments := remote.buildTimeline("narration", "intro", "outro", 600000)
	for _, seg := range segments {
		for i := 1; i < len(seg.Envelope); i++ {
			if seg.Envelope[i].OffsetMs <= seg.Envelope[i-1].OffsetMs {
				t.Errorf("segment %s: offsets %d and %d not strictly increasing",
					seg.Source, seg.Envelope[i-1].OffsetMs, seg.Envelope[i].OffsetMs)
			}
		}
	}

	intro, outro := segments[0], segments[2]
	if len(intro.Envelope) != 2 {
		t.Errorf("intro envelope = %+v, want the whole-bed fade collapsed to 2 points", intro.Envelope)
	}
	if got := intro.Envelope[len(intro.Envelope)-1].GainDb; got != silenceDb {
		t.Errorf("intro final gain = %v, want silence", got)
	}
	if len(outro.Envelope) != 2 {
		t.Errorf("outro envelope = %+v, want 2 points", outro.Envelope)
	}
}

func TestRemoteShortNarrationUsesSingleTrack(t *testing.T) {
	// 20s narration is below intro + outro + margin, so the timeline
	// mix must be skipped entirely.
	svc := &fakeService{durationMs: 20000, outputData: []byte("enhanced")}
	remote, _ := newTestRemote(t, svc)

	data, err := remote.Compose(context.Background(), testSource())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if string(data) != "enhanced" {
		t.Errorf("downloaded %q", data)
	}
	if svc.mixJobs != 0 {
		t.Errorf("mix jobs = %d, want 0", svc.mixJobs)
	}
	if svc.enhanceJobs != 1 {
		t.Errorf("enhance jobs = %d, want 1", svc.enhanceJobs)
	}
}

func TestRemoteMixRejectionFallsBackToSingleTrack(t *testing.T) {
	svc := &fakeService{durationMs: 600000, mixStatus: http.StatusInternalServerError, outputData: []byte("enhanced")}
	remote, _ := newTestRemote(t, svc)

	data, err := remote.Compose(context.Background(), testSource())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if string(data) != "enhanced" {
		t.Errorf("downloaded %q", data)
	}
	if svc.mixJobs != 1 || svc.enhanceJobs != 1 {
		t.Errorf("mix jobs = %d, enhance jobs = %d; want 1 and 1", svc.mixJobs, svc.enhanceJobs)
	}
}

func TestRemoteBothTiersFail(t *testing.T) {
	svc := &fakeService{
		durationMs:    600000,
		mixStatus:     http.StatusInternalServerError,
		enhanceStatus: http.StatusInternalServerError,
	}
	remote, _ := newTestRemote(t, svc)

	_, err := remote.Compose(context.Background(), testSource())
	if err == nil {
		t.Fatal("expected error when both tiers fail")
	}
	var je *RemoteJobError
	if !errors.As(err, &je) {
		t.Errorf("error = %v, want RemoteJobError", err)
	}
	if svc.downloads != 0 {
		t.Errorf("downloads = %d, want 0", svc.downloads)
	}
}

func TestRemoteFailedJobFallsBack(t *testing.T) {
	// The mix job is accepted but reports Failed; the fallback then
	// polls its own job, which the fake also fails, so both tiers fail.
	svc := &fakeService{durationMs: 600000, jobOutcome: JobFailed}
	remote, _ := newTestRemote(t, svc)

	_, err := remote.Compose(context.Background(), testSource())
	if err == nil {
		t.Fatal("expected error")
	}
	if svc.mixJobs != 1 || svc.enhanceJobs != 1 {
		t.Errorf("mix jobs = %d, enhance jobs = %d; want 1 and 1", svc.mixJobs, svc.enhanceJobs)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should carry the service message, got %v", err)
	}
}

func TestRemoteAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(types.EnhancementConfig{Endpoint: server.URL, APIKey: "k", APISecret: "s"}, logger.Nop())
	remote := NewRemote(client, testAudioConfig(), logger.Nop())

	_, err := remote.Compose(context.Background(), testSource())
	var ae *RemoteAuthError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v, want RemoteAuthError", err)
	}
	if ae.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", ae.StatusCode)
	}
}

func TestPollJobTimeout(t *testing.T) {
	svc := &fakeService{jobOutcome: JobRunning}
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	client := NewClient(types.EnhancementConfig{Endpoint: server.URL}, logger.Nop())
	client.pollInterval = time.Millisecond
	client.pollAttempts = 3

	err := client.PollJob(context.Background(), "tok", "job-1")
	var te *RemoteTimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want RemoteTimeoutError", err)
	}
	if te.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", te.Attempts)
	}
}

func TestPollJobStopsOnCancel(t *testing.T) {
	svc := &fakeService{jobOutcome: JobRunning}
	server := httptest.NewServer(svc.handler())
	defer server.Close()

	client := NewClient(types.EnhancementConfig{Endpoint: server.URL}, logger.Nop())
	client.pollInterval = time.Hour
	client.pollAttempts = 60

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- client.PollJob(ctx, "tok", "job-1") }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("PollJob did not return after cancellation")
	}
}
