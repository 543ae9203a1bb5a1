package hashpipe_test

import (
	"strings"
	"testing"

	"github.com/pilosa/hashpipe"
)

const (
	emptyDigest = "A69F73CCA23A9AC5C8B567DC185A756E97C982164FE25859E0D1DCC1475C80A615B2123AF1F5F94C11E3E9402C3AC558F500199D95B6D3E301758586281DCD26"
	abcDigest   = "B751850B1A57168A5693CD924B6B096E08F621827444F70D884F5D0240D2712E10E116E9192AF3C91A7EC57647E3934057340B4CF408D5A56592F8274EEC53F0"
	abc3Digest  = "82734A349A25B5017FBC9208A9FD545B5EA7AB795A1CE00EAFD27E1DDBC89378BD6BEDB6BBDE3D748057C085E14C6F928FD18EA2257B8AB329E16B9CC39A105F"
	// abc3Chained is what hashing the rendered digest three times gives. It
	// must never come out of ComputeDigest.
	abc3Chained = "6F42D560EA4CD5B649312287BA4B0CFA95C855DF3540D6627933A6CAA738545D26850CC129F92B81B9106426B44F5BC2A5F0E19D7A0156A587B56116996E379F"
)

func TestComputeDigestVectors(t *testing.T) {
	tests := []struct {
		payload    string
		iterations uint64
		exp        string
	}{
		{"abc", 0, emptyDigest},
		{"", 5, emptyDigest},
		{"abc", 1, abcDigest},
		{"abc", 3, abc3Digest},
		{"abcabcabc", 1, abc3Digest},
		{"hello world", 1000, "50E046C5C21F8251526E785527C3ACE2F19EB2A9B263658B0F6E3A3B2CE19F4A2949EE9C53AC808D48C96EC1F171256AB790E721034B630113E14ECC14242723"},
	}
	for _, tst := range tests {
		got := hashpipe.ComputeDigest(tst.payload, tst.iterations)
		if got != tst.exp {
			t.Fatalf("digest of %q x%d: exp %s, got %s", tst.payload, tst.iterations, tst.exp, got)
		}
		if len(got) != hashpipe.DigestLen {
			t.Fatalf("digest length %d", len(got))
		}
		if got != strings.ToUpper(got) {
			t.Fatalf("digest not uppercase: %s", got)
		}
	}
	if hashpipe.ComputeDigest("abc", 3) == abc3Chained {
		t.Fatal("digest was chained rather than accumulated")
	}
}

func TestComputeDigestDeterministic(t *testing.T) {
	a := hashpipe.NewDatum("1", "some document", 17)
	b := hashpipe.NewDatum("2", "some document", 17)
	if a.Hash() != b.Hash() {
		t.Fatalf("fresh instances disagree: %s vs %s", a.Hash(), b.Hash())
	}
}

func TestHashMemoized(t *testing.T) {
	d := hashpipe.NewDatum("1", "abc", 1)
	if _, ok := d.Digest(); ok {
		t.Fatal("new datum should not have a digest")
	}
	first := d.Hash()
	if first != abcDigest {
		t.Fatalf("unexpected digest %s", first)
	}
	if dg, ok := d.Digest(); !ok || dg != first {
		t.Fatalf("digest not cached: %q, %v", dg, ok)
	}
	if second := d.Hash(); second != first {
		t.Fatalf("digest changed between calls: %s vs %s", first, second)
	}

	// A cached value wins over the payload, proving Hash does not recompute.
	d = hashpipe.NewDatum("1", "abc", 1)
	d.SetDigest("CACHED")
	if got := d.Hash(); got != "CACHED" {
		t.Fatalf("Hash recomputed a cached digest: %s", got)
	}
}

func TestDecodedDigestIsKept(t *testing.T) {
	d, err := hashpipe.Decode([]byte(`{"id":"1","payload":"abc","iterations":1,"digest":"PRESET"}`))
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got := d.Hash(); got != "PRESET" {
		t.Fatalf("decoded digest was replaced: %s", got)
	}
}

func BenchmarkComputeDigest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		hashpipe.ComputeDigest("Rsx1qIHmgbpz3Nf2iCfsMYx4GaMbUqUe", 1000)
	}
}
