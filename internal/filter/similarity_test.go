package filter

import (
	"testing"

	"github.com/burrowscan/burrow/internal/scanner"
)

var (
	errorPageA = []byte(`<html><head><title>Oops something went wrong</title></head>
<body><h1>Error</h1><p>The page you requested could not be located on this
server, please check the address and try again later.</p></body></html>`)

	// same error page with a different request id baked in
	errorPageB = []byte(`<html><head><title>Oops something went wrong</title></head>
<body><h1>Error</h1><p>The page you requested could not be located on this
server, please check the address and try again shortly.</p></body></html>`)

	loginPage = []byte(`<html><head><title>Member login portal</title></head>
<body><form action="/session" method="post"><input name="username">
<input name="password" type="password"><button>Sign in</button></form>
<footer>Forgot credentials? Contact the administrator.</footer></body></html>`)
)

func TestFingerprint_Deterministic(t *testing.T) {
	if Fingerprint(errorPageA) != Fingerprint(errorPageA) {
		t.Error("fingerprint of the same body must be stable")
	}
	if Fingerprint(nil) != 0 {
		t.Error("empty body should fingerprint to zero")
	}
}

func TestFingerprint_NearDuplicatesAreClose(t *testing.T) {
	a := Fingerprint(errorPageA)
	b := Fingerprint(errorPageB)
	c := Fingerprint(loginPage)

	near := HammingDistance(a, b)
	far := HammingDistance(a, c)
	if near > 20 {
		t.Errorf("near-duplicate pages hashed %d bits apart, expected close", near)
	}
	if far <= 20 {
		t.Errorf("unrelated pages hashed only %d bits apart, expected far", far)
	}
	if near >= far {
		t.Errorf("near distance %d should be smaller than far distance %d", near, far)
	}
}

func TestHammingDistance(t *testing.T) {
	if d := HammingDistance(0, 0); d != 0 {
		t.Errorf("distance(0,0) = %d, want 0", d)
	}
	if d := HammingDistance(0, ^uint64(0)); d != 64 {
		t.Errorf("distance(0,~0) = %d, want 64", d)
	}
	if d := HammingDistance(0b1010, 0b0110); d != 2 {
		t.Errorf("distance = %d, want 2", d)
	}
}

func TestSimilarityFilter(t *testing.T) {
	f := NewSimilarityFilter(Fingerprint(errorPageA), "http://t/missing", 3)

	same := &scanner.Response{Body: errorPageA}
	if !f.ShouldFilter(same) {
		t.Error("identical body should be dropped as similar")
	}

	different := &scanner.Response{Body: loginPage}
	if f.ShouldFilter(different) {
		t.Error("unrelated body should pass")
	}

	// bodies are gone after extraction; never drop on a missing body
	empty := &scanner.Response{Body: nil}
	if f.ShouldFilter(empty) {
		t.Error("empty body should never be dropped")
	}
}
