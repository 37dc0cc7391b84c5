package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clip-relay/internal/domain"
)

func TestYouTubeVideoID(t *testing.T) {
	cases := []struct {
		raw    string
		want   string
		hasErr bool
	}{
		{raw: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{raw: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{raw: "https://youtube.com/shorts/abc123XYZ_-/", want: "abc123XYZ_-"},
		{raw: "https://m.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{raw: "https://vimeo.com/12345", hasErr: true},
		{raw: "https://www.youtube.com/watch", hasErr: true},
		{raw: "https://youtu.be/", hasErr: true},
	}
	for _, tc := range cases {
		got, err := youtubeVideoID(tc.raw)
		if tc.hasErr {
			if !errors.Is(err, domain.ErrInvalidURL) {
				t.Fatalf("%s: ожидали ErrInvalidURL, получили %v", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: не ожидали ошибку: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%s: ожидали %q, получили %q", tc.raw, tc.want, got)
		}
	}
}

func TestTikTokVideoID(t *testing.T) {
	cases := []struct {
		raw    string
		want   string
		hasErr bool
	}{
		{raw: "https://www.tiktok.com/@user.name/video/7234567890123456789", want: "7234567890123456789"},
		{raw: "https://vm.tiktok.com/ZM8abc/", want: "ZM8abc"},
		{raw: "https://vt.tiktok.com/xyz", want: "xyz"},
		{raw: "https://www.tiktok.com/@user", hasErr: true},
		{raw: "https://vm.tiktok.com/", hasErr: true},
		{raw: "https://example.com/@user/video/1", hasErr: true},
	}
	for _, tc := range cases {
		got, err := tiktokVideoID(tc.raw)
		if tc.hasErr {
			if !errors.Is(err, domain.ErrInvalidURL) {
				t.Fatalf("%s: ожидали ErrInvalidURL, получили %v", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: не ожидали ошибку: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%s: ожидали %q, получили %q", tc.raw, tc.want, got)
		}
	}
}

func TestInstagramMediaCode(t *testing.T) {
	cases := []struct {
		raw    string
		want   string
		hasErr bool
	}{
		{raw: "https://www.instagram.com/p/Cabc123_-xy/", want: "Cabc123_-xy"},
		{raw: "https://instagram.com/reel/Cabc123", want: "Cabc123"},
		{raw: "https://www.instagram.com/reels/Cabc123/", want: "Cabc123"},
		{raw: "https://www.instagram.com/tv/Cabc123/", want: "Cabc123"},
		{raw: "https://www.instagram.com/username/", hasErr: true},
		{raw: "https://www.instagram.com/stories/user/123", hasErr: true},
		{raw: "https://example.com/p/Cabc123/", hasErr: true},
	}
	for _, tc := range cases {
		got, err := instagramMediaCode(tc.raw)
		if tc.hasErr {
			if !errors.Is(err, domain.ErrInvalidURL) {
				t.Fatalf("%s: ожидали ErrInvalidURL, получили %v", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: не ожидали ошибку: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%s: ожидали %q, получили %q", tc.raw, tc.want, got)
		}
	}
}

func TestExtractUnsupportedPlatform(t *testing.T) {
	s := New(time.Second, "")
	_, err := s.Extract(context.Background(), "https://example.com/v/1", domain.Platform("vimeo"))
	if !errors.Is(err, domain.ErrUnsupportedPlatform) {
		t.Fatalf("ожидали ErrUnsupportedPlatform, получили %v", err)
	}
	if domain.IsTransient(err) {
		t.Fatalf("неподдерживаемая платформа — окончательный сбой")
	}
}

func TestExtractInvalidURLTerminal(t *testing.T) {
	s := New(time.Second, "")
	_, err := s.Extract(context.Background(), "https://vimeo.com/12345", domain.PlatformYouTube)
	if !errors.Is(err, domain.ErrInvalidURL) {
		t.Fatalf("ожидали ErrInvalidURL, получили %v", err)
	}
	if domain.IsTransient(err) {
		t.Fatalf("невалидная ссылка — окончательный сбой")
	}
}

func TestExtractInstagramWithoutToken(t *testing.T) {
	s := New(time.Second, "")
	_, err := s.Extract(context.Background(), "https://www.instagram.com/reel/Cabc123/", domain.PlatformInstagram)
	if err == nil || domain.IsTransient(err) {
		t.Fatalf("без токена Instagram — окончательный сбой, получили %v", err)
	}
}

func TestFetchOEmbedSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title": "Ролик", "author_name": "Автор", "thumbnail_url": "https://cdn/thumb.jpg"}`))
	}))
	defer srv.Close()

	s := New(time.Second, "")
	resp, err := s.fetchOEmbed(context.Background(), domain.PlatformYouTube, srv.URL)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	meta := metadataFromOEmbed(resp)
	if meta.Title != "Ролик" || meta.Author != "Автор" || meta.ThumbnailURL != "https://cdn/thumb.jpg" {
		t.Fatalf("неожиданные метаданные: %+v", meta)
	}
}

func TestFetchOEmbedTransientStatuses(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		s := New(time.Second, "")
		_, err := s.fetchOEmbed(context.Background(), domain.PlatformYouTube, srv.URL)
		srv.Close()
		if err == nil || !domain.IsTransient(err) {
			t.Fatalf("статус %d должен считаться временным сбоем, получили %v", code, err)
		}
	}
}

func TestFetchOEmbedTerminalStatuses(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		s := New(time.Second, "")
		_, err := s.fetchOEmbed(context.Background(), domain.PlatformYouTube, srv.URL)
		srv.Close()
		if err == nil || domain.IsTransient(err) {
			t.Fatalf("статус %d должен считаться окончательным сбоем, получили %v", code, err)
		}
	}
}

func TestFetchOEmbedConnectionRefusedTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	s := New(time.Second, "")
	_, err := s.fetchOEmbed(context.Background(), domain.PlatformYouTube, endpoint)
	if err == nil || !domain.IsTransient(err) {
		t.Fatalf("обрыв соединения должен считаться временным сбоем, получили %v", err)
	}
}

func TestClassifyTransportErrTimeout(t *testing.T) {
	if !domain.IsTransient(classifyTransportErr(context.DeadlineExceeded)) {
		t.Fatalf("таймаут должен считаться временным сбоем")
	}
}
