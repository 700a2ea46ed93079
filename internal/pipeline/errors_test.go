package pipeline

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindBadRequest, http.StatusBadRequest},
		{KindUnsupportedFormat, http.StatusBadRequest},
		{KindPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{KindDecode, http.StatusUnprocessableEntity},
		{KindModelUnavailable, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusCode(tc.kind); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.kind, tc.want, got)
		}
	}
}

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("root cause")
	err := newError(KindDecode, ReasonDecodeFailed, cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be unwrappable")
	}
	if err.Error() != "Audio decode failed: root cause" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	bare := newError(KindInternal, ReasonInternal, nil)
	if bare.Error() != ReasonInternal {
		t.Fatalf("unexpected message: %q", bare.Error())
	}
}

func TestTimingsSecondsRounding(t *testing.T) {
	tm := Timings{
		Conversion: 1234567 * time.Microsecond, // 1.234567s
		ASR:        2 * time.Second,
		Keyword:    499 * time.Microsecond, // rounds to 0
		Total:      3*time.Second + 235*time.Millisecond,
	}
	sec := tm.Seconds()
	if sec["conversion_sec"] != 1.235 {
		t.Fatalf("conversion: got %f", sec["conversion_sec"])
	}
	if sec["asr_sec"] != 2.0 {
		t.Fatalf("asr: got %f", sec["asr_sec"])
	}
	if sec["keyword_sec"] != 0 {
		t.Fatalf("keyword: got %f", sec["keyword_sec"])
	}
	if sec["total_sec"] != 3.235 {
		t.Fatalf("total: got %f", sec["total_sec"])
	}
}
