package table

import (
	"testing"

	"loxvm/internal/value"
)

func intern(t *Table, text string) *value.Str {
	hash := HashString(text)
	if existing := t.FindString(text, hash); existing != nil {
		return existing
	}
	str := &value.Str{Text: text, Hash: hash}
	t.Set(str, value.Nil)
	return str
}

func TestSetGetDelete(t *testing.T) {
	tbl := New()
	key := &value.Str{Text: "answer", Hash: HashString("answer")}

	if wasNew := tbl.Set(key, value.NewNumber(42)); !wasNew {
		t.Fatal("first Set of a key should report it as new")
	}
	got, ok := tbl.Get(key)
	if !ok || got.Number != 42 {
		t.Fatalf("Get = %v, %v; want 42, true", got, ok)
	}

	if wasNew := tbl.Set(key, value.NewNumber(43)); wasNew {
		t.Fatal("overwriting an existing key should not report it as new")
	}

	if !tbl.Delete(key) {
		t.Fatal("Delete should report the key was present")
	}
	if _, ok := tbl.Get(key); ok {
		t.Fatal("Get after Delete should miss")
	}
	if tbl.Delete(key) {
		t.Fatal("second Delete should report absent")
	}
}

func TestTombstoneKeepsProbeChainAlive(t *testing.T) {
	tbl := New()
	// "a" and "i" share home slot 4 of the initial 8-slot table, so
	// "i" is stored one slot past "a".
	a := intern(tbl, "a")
	b := intern(tbl, "i")
	tbl.Set(a, value.NewNumber(1))
	tbl.Set(b, value.NewNumber(2))

	tbl.Delete(a)

	// b must still be reachable even though a tombstone now sits
	// somewhere on its probe chain.
	got, ok := tbl.Get(b)
	if !ok || got.Number != 2 {
		t.Fatalf("Get(b) after deleting a = %v, %v; want 2, true", got, ok)
	}
}

func TestFindStringIsContentLookup(t *testing.T) {
	tbl := New()
	original := intern(tbl, "hello")

	hash := HashString("hello")
	found := tbl.FindString("hello", hash)
	if found != original {
		t.Fatal("FindString should return the same interned record for equal text")
	}

	if tbl.FindString("missing", HashString("missing")) != nil {
		t.Fatal("FindString should miss for text never interned")
	}
}

func TestGrowRehashesKeepsEveryKey(t *testing.T) {
	tbl := New()
	var keys []*value.Str
	for i := 0; i < 100; i++ {
		text := string(rune('a' + (i % 26)))
		for j := 0; j < i/26; j++ {
			text += string(rune('a' + (i % 26)))
		}
		key := intern(tbl, text)
		tbl.Set(key, value.NewNumber(float64(i)))
		keys = append(keys, key)
	}

	for i, key := range keys {
		got, ok := tbl.Get(key)
		if !ok || got.Number != float64(i) {
			t.Fatalf("key %d (%s): Get = %v, %v; want %d, true", i, key.Text, got, ok, i)
		}
	}
}

func TestHashStringIsFNV1a(t *testing.T) {
	// FNV-1a-32 of the empty string is the offset basis itself.
	if got := HashString(""); got != fnvOffsetBasis {
		t.Fatalf("HashString(\"\") = %d, want %d", got, fnvOffsetBasis)
	}
}
