package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 80, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestParseDataURL(t *testing.T) {
	raw := samplePNG(t)
	encoded := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name     string
		input    string
		wantMIME string
		wantErr  bool
	}{
		{name: "prefixed", input: "data:image/png;base64," + encoded, wantMIME: "image/png"},
		{name: "declared mime wins", input: "data:image/jpeg;base64," + encoded, wantMIME: "image/jpeg"},
		{name: "bare base64", input: encoded, wantMIME: "image/png"},
		{name: "not base64", input: "data:image/png;base64,@@@", wantErr: true},
		{name: "missing base64 marker", input: "data:image/png," + encoded, wantErr: true},
		{name: "text payload", input: "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello")), wantErr: true},
		{name: "empty", input: "  ", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img, err := ParseDataURL(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", img)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDataURL returned error: %v", err)
			}
			if img.MIMEType != tc.wantMIME {
				t.Fatalf("MIMEType = %q, want %q", img.MIMEType, tc.wantMIME)
			}
			if !bytes.Equal(img.Data, raw) {
				t.Fatal("decoded bytes differ from input")
			}
		})
	}
}

func TestEncodeDataURLRoundTrip(t *testing.T) {
	raw := samplePNG(t)
	img, err := ParseDataURL(EncodeDataURL(raw, ""))
	if err != nil {
		t.Fatalf("ParseDataURL returned error: %v", err)
	}
	if img.MIMEType != "image/png" || !bytes.Equal(img.Data, raw) {
		t.Fatalf("round trip mismatch: %q", img.MIMEType)
	}
}

func TestToJPEGFromPNG(t *testing.T) {
	out, err := ToJPEG(samplePNG(t))
	if err != nil {
		t.Fatalf("ToJPEG returned error: %v", err)
	}
	if got := SniffMIMEType(out); got != "image/jpeg" {
		t.Fatalf("output mime = %q", got)
	}
	if _, err := ToJPEG([]byte("not an image")); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestSniffMIMETypeRecognisesWebP(t *testing.T) {
	header := []byte("RIFF\x00\x00\x00\x00WEBPVP8 ")
	if got := SniffMIMEType(header); got != "image/webp" {
		t.Fatalf("SniffMIMEType = %q", got)
	}
}

func TestFetcherFetch(t *testing.T) {
	raw := samplePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(raw)
		case "/untyped":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(raw)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{MaxBytes: 1 << 20})
	ctx := context.Background()

	img, err := f.Fetch(ctx, srv.URL+"/ok.png")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if img.MIMEType != "image/png" || !bytes.Equal(img.Data, raw) {
		t.Fatalf("unexpected image %q", img.MIMEType)
	}

	img, err = f.Fetch(ctx, srv.URL+"/untyped")
	if err != nil {
		t.Fatalf("Fetch untyped returned error: %v", err)
	}
	if img.MIMEType != "image/png" {
		t.Fatalf("sniffed mime = %q", img.MIMEType)
	}

	if _, err := f.Fetch(ctx, srv.URL+"/page"); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
	if _, err := f.Fetch(ctx, srv.URL+"/missing"); err == nil {
		t.Fatal("expected error for 404")
	}

	small := NewFetcher(FetcherOptions{MaxBytes: 8})
	if _, err := small.Fetch(ctx, srv.URL+"/ok.png"); err == nil {
		t.Fatal("expected size limit error")
	}
}

func TestLoadFromFile(t *testing.T) {
	raw := samplePNG(t)
	path := filepath.Join(t.TempDir(), "product.png")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	img, err := Load(context.Background(), nil, path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if img.MIMEType != "image/png" {
		t.Fatalf("MIMEType = %q", img.MIMEType)
	}

	none, err := Load(context.Background(), nil, "")
	if err != nil || none != nil {
		t.Fatalf("Load(\"\") = %v, %v; want nil, nil", none, err)
	}

	textPath := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(textPath, []byte("just words"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := Load(context.Background(), nil, textPath); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
}
