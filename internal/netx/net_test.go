package netx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPostFile(t *testing.T) {
	file := []byte("fake image bytes")

	t.Run("success 200 OK", func(t *testing.T) {
		var gotMethod, gotName, gotField string
		var gotBody []byte

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			f, hdr, err := r.FormFile("file")
			if err != nil {
				t.Errorf("FormFile: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			defer f.Close()
			gotField = "file"
			gotName = hdr.Filename
			gotBody, _ = io.ReadAll(f)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer ts.Close()

		body, err := PostFile(context.Background(), ts.Client(), ts.URL+"/api/ocr", "file", "receipt.jpg", file)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotMethod != http.MethodPost {
			t.Fatalf("method = %q, want POST", gotMethod)
		}
		if gotField != "file" || gotName != "receipt.jpg" {
			t.Fatalf("field/name = %q/%q", gotField, gotName)
		}
		if string(gotBody) != string(file) {
			t.Fatalf("uploaded = %q, want %q", gotBody, file)
		}
		if string(body) != `{"ok":true}` {
			t.Fatalf("body = %q", body)
		}
	})

	t.Run("non-2xx -> StatusError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "engine crashed", http.StatusInternalServerError)
		}))
		defer ts.Close()

		_, err := PostFile(context.Background(), ts.Client(), ts.URL, "file", "r.png", file)
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("want *StatusError, got %v", err)
		}
		if se.Code != http.StatusInternalServerError || !strings.Contains(se.Body, "engine crashed") {
			t.Fatalf("unexpected status error: %+v", se)
		}
		if !strings.Contains(err.Error(), "500") {
			t.Fatalf("error = %q, want to contain 500", err.Error())
		}
	})

	t.Run("network error", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		ts.Close()

		_, err := PostFile(context.Background(), nil, ts.URL, "file", "r.png", file)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		var se *StatusError
		if errors.As(err, &se) {
			t.Fatalf("got wrong kind of error: %v", err)
		}
	})

	t.Run("context deadline", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer ts.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := PostFile(ctx, ts.Client(), ts.URL, "file", "r.png", file)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("want deadline exceeded, got %v", err)
		}
	})
}
