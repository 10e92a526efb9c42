package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"persona_ad_studio/catalog"
	"persona_ad_studio/config"
	"persona_ad_studio/generator"
	"persona_ad_studio/persona"
)

const adAnalysis = `{"overallBlurb":"Strong.","elements":[{"text":"Go faster","type":"Headline","whyItWorks":"short"}]}`

// fakeProvider scripts evaluator feedback and counts every call.
type fakeProvider struct {
	mu       sync.Mutex
	feedback []string
	evals    int
	calls    atomic.Int64
	failEdit string

	// generating, when set, makes Generate signal on it and block until
	// the request context ends.
	generating chan struct{}
}

func (f *fakeProvider) Complete(_ context.Context, p generator.Prompt) (generator.Completion, error) {
	f.calls.Add(1)
	switch {
	case p.Schema != nil:
		return generator.Completion{Text: adAnalysis}, nil
	case len(p.Images) == 1:
		f.mu.Lock()
		defer f.mu.Unlock()
		text := "needs work"
		if f.evals < len(f.feedback) {
			text = f.feedback[f.evals]
		}
		f.evals++
		return generator.Completion{Text: text}, nil
	case strings.HasPrefix(p.User, "Analyze how"):
		return generator.Completion{Text: "1. Speed\n2. Focus"}, nil
	}
	return generator.Completion{Text: `"Ship it faster"`}, nil
}

func (f *fakeProvider) Generate(ctx context.Context, _ generator.ImageRequest) (generator.Image, error) {
	f.calls.Add(1)
	if f.generating != nil {
		close(f.generating)
		<-ctx.Done()
		return generator.Image{}, ctx.Err()
	}
	return generator.Image{Data: []byte("generated"), MimeType: "image/png"}, nil
}

func (f *fakeProvider) Edit(_ context.Context, req generator.ImageEditRequest) (generator.Image, error) {
	f.calls.Add(1)
	if f.failEdit != "" && strings.Contains(req.Prompt, f.failEdit) {
		return generator.Image{}, errors.New("edit failed")
	}
	return generator.Image{Data: []byte("edited"), MimeType: "image/png"}, nil
}

func newTestServer(t *testing.T, p *fakeProvider) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(newTestHandler(t, p))
	t.Cleanup(ts.Close)
	return ts
}

func newTestHandler(t *testing.T, p *fakeProvider) http.Handler {
	t.Helper()
	adsDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(adsDir, "image1.png"), []byte("\x89PNG\r\n\x1a\nfake"), 0o644); err != nil {
		t.Fatalf("write ad: %v", err)
	}
	cfg := config.Config{
		AdsDir:                adsDir,
		SessionTTLMinutes:     5,
		RequestTimeoutSeconds: 10,
	}
	cat, err := catalog.Load("", adsDir)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	refiner, err := generator.NewRefiner(p, generator.RefinerOptions{MaxAttempts: 4, InitialQuality: "low", EditQuality: "medium"})
	if err != nil {
		t.Fatalf("refiner: %v", err)
	}
	pipeline, err := persona.NewPipeline(p, persona.PipelineOptions{})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	variator, err := persona.NewVariator(p, persona.VariatorOptions{CostPerEdit: 0.04})
	if err != nil {
		t.Fatalf("variator: %v", err)
	}
	srv, err := New(Deps{Refiner: refiner, Pipeline: pipeline, Variator: variator, Catalog: cat, Config: cfg})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	return srv.Routes()
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", strings.NewReader(string(payload)))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readEvents(t *testing.T, resp *http.Response) []generator.Event {
	t.Helper()
	var events []generator.Event
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev generator.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decode event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestGenerateImageStreamsEvents(t *testing.T) {
	ts := newTestServer(t, &fakeProvider{feedback: []string{"needs better lighting", "APPROVED"}})

	resp := postJSON(t, ts.URL+"/api/generate-image", map[string]any{"prompt": "a red sports car", "maxAttempts": 2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	events := readEvents(t, resp)
	var kinds []string
	for _, ev := range events {
		kinds = append(kinds, string(ev.Type))
	}
	want := "status,image,status,evaluation,status,image,status,evaluation,complete"
	if got := strings.Join(kinds, ","); got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}
	last := events[len(events)-1]
	if last.IsApproved == nil || !*last.IsApproved || last.TotalCost == "" {
		t.Fatalf("unexpected completion %+v", last)
	}
	if events[1].Step == nil || *events[1].Step != 0 {
		t.Fatalf("initial image must carry step 0")
	}
}

func TestGenerateImageStopsWhenClientLeaves(t *testing.T) {
	p := &fakeProvider{generating: make(chan struct{})}
	h := newTestHandler(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/generate-image", strings.NewReader(`{"prompt":"a red sports car"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(rec, req)
	}()

	select {
	case <-p.generating:
	case <-time.After(5 * time.Second):
		t.Fatal("generation never started")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler kept running after the client left")
	}
	if strings.Contains(rec.Body.String(), `"type":"image"`) || strings.Contains(rec.Body.String(), `"type":"complete"`) {
		t.Fatalf("no image or completion expected after cancel, got %s", rec.Body.String())
	}
	if got := p.calls.Load(); got != 1 {
		t.Fatalf("expected only the generate call, got %d", got)
	}
}

func TestGenerateImageRequiresPrompt(t *testing.T) {
	p := &fakeProvider{}
	ts := newTestServer(t, p)

	resp := postJSON(t, ts.URL+"/api/generate-image", map[string]any{"prompt": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["error"] != "Prompt is required" {
		t.Fatalf("unexpected body %v", body)
	}
	if p.calls.Load() != 0 {
		t.Fatalf("provider called")
	}
}

func TestVariateWithoutImage(t *testing.T) {
	p := &fakeProvider{}
	ts := newTestServer(t, p)

	resp := postJSON(t, ts.URL+"/api/variate", map[string]any{
		"personas":           []map[string]string{{"id": "tech_persona_1", "name": "Dev Dan", "bio": "dev"}},
		"productDescription": "earbuds",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body variateResp
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Success || body.Message == "" {
		t.Fatalf("unexpected body %+v", body)
	}
	if p.calls.Load() != 0 {
		t.Fatalf("provider called %d times", p.calls.Load())
	}
}

func TestVariateRejectsBadFields(t *testing.T) {
	p := &fakeProvider{}
	ts := newTestServer(t, p)
	personas := []map[string]string{{"id": "a", "name": "A", "bio": "b"}}

	cases := map[string]struct {
		body map[string]any
		msg  string
	}{
		"upload not string": {map[string]any{"uploadedAdImage": 12, "personas": personas, "productDescription": "x"}, "Uploaded ad image must be a base64 string."},
		"path not string":   {map[string]any{"adImagePath": true, "personas": personas, "productDescription": "x"}, "Ad image path must be a string."},
		"path traversal":    {map[string]any{"adImagePath": "/ads/../../etc/passwd", "personas": personas, "productDescription": "x"}, "Ad image could not be loaded"},
		"personas not list": {map[string]any{"adImagePath": "/ads/image1.png", "personas": "all", "productDescription": "x"}, "Personas must be an array"},
		"no description":    {map[string]any{"adImagePath": "/ads/image1.png", "personas": personas}, "Product description is required"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/variate", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			var body variateResp
			json.NewDecoder(resp.Body).Decode(&body)
			if body.Success || body.Message != tc.msg {
				t.Fatalf("message = %q, want %q", body.Message, tc.msg)
			}
		})
	}
	if p.calls.Load() != 0 {
		t.Fatalf("provider called %d times", p.calls.Load())
	}
}

func TestVariateWithCatalogueAd(t *testing.T) {
	ts := newTestServer(t, &fakeProvider{})

	resp := postJSON(t, ts.URL+"/api/variate", map[string]any{
		"adImagePath":        "/ads/image1.png",
		"productDescription": "earbuds",
		"personas": []map[string]string{
			{"id": "tech_persona_1", "name": "Dev Dan", "bio": "dev"},
			{"id": "tech_persona_2", "name": "Product Paula", "bio": "designer"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body variateResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || len(body.Results) != 2 || body.Results[1].Persona.ID != "tech_persona_2" {
		t.Fatalf("unexpected body %+v", body)
	}
	v := body.Results[0].Variations
	if len(v) != 1 || v[0].ID != "element_1" || v[0].Before != "Go faster" || v[0].After != "Ship it faster" {
		t.Fatalf("unexpected variations %+v", v)
	}
	if !strings.Contains(body.Results[0].AnalysisHTML, "<ol>") {
		t.Fatalf("expected rendered analysis, got %q", body.Results[0].AnalysisHTML)
	}
}

func TestOptimizeForPersonas(t *testing.T) {
	ts := newTestServer(t, &fakeProvider{failEdit: "Product Paula"})
	original := generator.DataURL("image/png", []byte("approved"))

	resp := postJSON(t, ts.URL+"/api/optimize-for-personas", map[string]any{"prompt": "a car"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing fields status = %d", resp.StatusCode)
	}
	var errBody map[string]string
	json.NewDecoder(resp.Body).Decode(&errBody)
	if errBody["error"] != msgOptimizeRequired {
		t.Fatalf("unexpected error body %v", errBody)
	}

	resp = postJSON(t, ts.URL+"/api/optimize-for-personas", map[string]any{
		"originalImage": original,
		"prompt":        "a car",
		"personas": []map[string]string{
			{"id": "1", "name": "Dev Dan", "bio": "dev"},
			{"id": "2", "name": "Product Paula", "bio": "designer"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body optimizeResp
	json.NewDecoder(resp.Body).Decode(&body)
	if len(body.Variations) != 2 || body.OptimizationCost != "0.0400" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Variations[1].Error == "" || body.Variations[1].Image != original {
		t.Fatalf("failed persona should fall back to the original: %+v", body.Variations[1])
	}
}

func TestSessionPersonaEdit(t *testing.T) {
	ts := newTestServer(t, &fakeProvider{})

	resp := postJSON(t, ts.URL+"/api/sessions", map[string]any{})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var sess visitorSession
	json.NewDecoder(resp.Body).Decode(&sess)
	if sess.ID == "" || len(sess.Personas) != 3 {
		t.Fatalf("unexpected session %+v", sess)
	}

	put := func(path, body string) *http.Response {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp = put("/api/sessions/"+sess.ID+"/personas/tech_persona_2", `{"bio":"Paula now leads a design team."}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	if r := put("/api/sessions/"+sess.ID+"/personas/nobody", `{"bio":"x"}`); r.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown persona status = %d", r.StatusCode)
	}
	if r := put("/api/sessions/"+sess.ID+"/personas/tech_persona_2", `{"bio":"  "}`); r.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty bio status = %d", r.StatusCode)
	}

	got, err := http.Get(ts.URL + "/api/sessions/" + sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer got.Body.Close()
	var after visitorSession
	json.NewDecoder(got.Body).Decode(&after)
	if after.Personas[1].Bio != "Paula now leads a design team." || after.Personas[0].Bio != sess.Personas[0].Bio {
		t.Fatalf("unexpected personas after edit %+v", after.Personas)
	}

	// the session's edited bio is used, not the one in the request body
	resp = postJSON(t, ts.URL+"/api/variate", map[string]any{
		"sessionId":          sess.ID,
		"adImagePath":        "/ads/image1.png",
		"productDescription": "earbuds",
		"personas":           []map[string]string{{"id": "tech_persona_2", "name": "Paula", "bio": "stale bio from the client"}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("variate with session status = %d", resp.StatusCode)
	}
	var varied variateResp
	json.NewDecoder(resp.Body).Decode(&varied)
	if len(varied.Results) != 1 || varied.Results[0].Persona.Bio != "Paula now leads a design team." {
		t.Fatalf("expected the session bio, got %+v", varied.Results)
	}

	// personas outside the session's set are rejected
	resp = postJSON(t, ts.URL+"/api/variate", map[string]any{
		"sessionId":          sess.ID,
		"adImagePath":        "/ads/image1.png",
		"productDescription": "x",
		"personas":           []map[string]string{{"id": "stranger", "name": "S", "bio": "b"}},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("foreign persona status = %d", resp.StatusCode)
	}

	missing, err := http.Get(ts.URL + "/api/sessions/does-not-exist")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing session status = %d", missing.StatusCode)
	}
}

func TestCatalogAndHealth(t *testing.T) {
	ts := newTestServer(t, &fakeProvider{})

	resp, err := http.Get(ts.URL + "/api/catalog")
	if err != nil {
		t.Fatalf("get catalog: %v", err)
	}
	defer resp.Body.Close()
	var cat catalog.Catalog
	json.NewDecoder(resp.Body).Decode(&cat)
	if len(cat.Personas) != 3 || len(cat.Products) != 5 {
		t.Fatalf("unexpected catalog %+v", cat)
	}

	health, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", health.StatusCode)
	}
}
