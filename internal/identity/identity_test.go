package identity

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

func TestLoadIndex_MissingOrBroken(t *testing.T) {
	dir := t.TempDir()
	if idx := LoadIndex(filepath.Join(dir, "nope.json")); len(idx) != 0 {
		t.Errorf("missing file index = %v", idx)
	}

	broken := filepath.Join(dir, "ids.json")
	if err := os.WriteFile(broken, []byte(`{"k": 1`), 0o644); err != nil {
		t.Fatal(err)
	}
	if idx := LoadIndex(broken); len(idx) != 0 {
		t.Errorf("broken file index = %v", idx)
	}
}

func TestSaveIndex_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discord", IndexFile)
	want := Index{"k1": "Alice", "k2": "Bob"}
	if err := SaveIndex(path, want); err != nil {
		t.Fatalf("SaveIndex: %v", err)
	}
	if got := LoadIndex(path); !reflect.DeepEqual(got, want) {
		t.Errorf("loaded %v, want %v", got, want)
	}
}

func TestIndex_Rename(t *testing.T) {
	tests := []struct {
		name    string
		idx     Index
		old     string
		new     string
		wantErr error
		want    Index
	}{
		{
			name: "single match",
			idx:  Index{"k1": "Alice", "k2": "Bob"},
			old:  "Alice", new: "Alicia",
			want: Index{"k1": "Alicia", "k2": "Bob"},
		},
		{
			name:    "no match",
			idx:     Index{"k1": "Alice"},
			old:     "Carol",
			new:     "Caroline",
			wantErr: core.ErrNotFound,
		},
		{
			name:    "ambiguous",
			idx:     Index{"k1": "Sam", "k2": "Sam"},
			old:     "Sam",
			new:     "Samuel",
			wantErr: core.ErrAmbiguous,
		},
		{
			name:    "new name taken",
			idx:     Index{"k1": "Alice", "k2": "Bob"},
			old:     "Alice",
			new:     "Bob",
			wantErr: core.ErrDuplicateName,
		},
		{
			name: "same name",
			idx:  Index{"k1": "Alice"},
			old:  "Alice", new: "Alice",
			want: Index{"k1": "Alice"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.idx.Rename(tt.old, tt.new)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Rename: %v", err)
			}
			if !reflect.DeepEqual(tt.idx, tt.want) {
				t.Errorf("index = %v, want %v", tt.idx, tt.want)
			}
		})
	}
}

func TestIndex_Forget(t *testing.T) {
	idx := Index{"k1": "Alice"}
	if err := idx.Forget("k2"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := idx.Forget("k1"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if len(idx) != 0 {
		t.Errorf("index = %v", idx)
	}
}

func TestIndex_Set(t *testing.T) {
	idx := Index{"k1": "Alice"}
	if err := idx.Set("k2", "Alice"); !errors.Is(err, core.ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
	if err := idx.Set("k1", "Alice"); err != nil {
		t.Fatalf("re-capture under same name: %v", err)
	}
	if err := idx.Set("k2", "Bob"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := idx.Names(); !reflect.DeepEqual(got, []string{"Alice", "Bob"}) {
		t.Errorf("names = %v", got)
	}
}

func TestIndex_NamesSortedCaseInsensitive(t *testing.T) {
	idx := Index{"a": "bob", "b": "Alice", "c": "carol"}
	want := []string{"Alice", "bob", "carol"}
	if got := idx.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
}

func writeOrder(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestApplyOrder(t *testing.T) {
	tests := []struct {
		name     string
		order    string // "" means no file
		accounts []string
		want     []string
	}{
		{
			name:     "partial order",
			order:    `["Bob","Alice"]`,
			accounts: []string{"Alice", "Bob", "Carol"},
			want:     []string{"Bob", "Alice", "Carol"},
		},
		{
			name:     "unknown names ignored",
			order:    `["Zed","Carol"]`,
			accounts: []string{"Alice", "Bob", "Carol"},
			want:     []string{"Carol", "Alice", "Bob"},
		},
		{
			name:     "repeated account",
			order:    `["A"]`,
			accounts: []string{"A", "A"},
			want:     []string{"A", "A"},
		},
		{
			name:     "repeated order entry",
			order:    `["B","A","B"]`,
			accounts: []string{"A", "B", "C"},
			want:     []string{"B", "A", "C"},
		},
		{
			name:     "missing file",
			accounts: []string{"Bob", "Alice"},
			want:     []string{"Bob", "Alice"},
		},
		{
			name:     "undecodable file",
			order:    `{"not":"a list"}`,
			accounts: []string{"Bob", "Alice"},
			want:     []string{"Bob", "Alice"},
		},
		{
			name:     "empty order",
			order:    `[]`,
			accounts: []string{"Bob", "Alice"},
			want:     []string{"Bob", "Alice"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), OrderFile)
			if tt.order != "" {
				writeOrder(t, path, tt.order)
			}
			if got := ApplyOrder(tt.accounts, path); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ApplyOrder = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenameAndRemoveInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), OrderFile)
	if err := SaveOrder(path, []string{"Bob", "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := RenameInOrder(path, "Alice", "Alicia"); err != nil {
		t.Fatal(err)
	}
	if err := RemoveFromOrder(path, "Bob"); err != nil {
		t.Fatal(err)
	}
	if err := RemoveFromOrder(path, "Nobody"); err != nil {
		t.Fatal(err)
	}
	if got := loadOrder(path); !reflect.DeepEqual(got, []string{"Alicia"}) {
		t.Errorf("order = %v", got)
	}
}

func TestListAccounts(t *testing.T) {
	t.Run("from index", func(t *testing.T) {
		dir := t.TempDir()
		if err := SaveIndex(filepath.Join(dir, IndexFile), Index{"k1": "Alice", "k2": "Bob", "k3": "Carol"}); err != nil {
			t.Fatal(err)
		}
		if err := SaveOrder(filepath.Join(dir, OrderFile), []string{"Bob", "Alice"}); err != nil {
			t.Fatal(err)
		}
		got, err := ListAccounts(dir)
		if err != nil {
			t.Fatal(err)
		}
		if want := []string{"Bob", "Alice", "Carol"}; !reflect.DeepEqual(got, want) {
			t.Errorf("accounts = %v, want %v", got, want)
		}
	})

	t.Run("from directories", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"work", "Main"} {
			if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
				t.Fatal(err)
			}
		}
		writeOrder(t, filepath.Join(dir, "stray.txt"), "x")
		got, err := ListAccounts(dir)
		if err != nil {
			t.Fatal(err)
		}
		if want := []string{"Main", "work"}; !reflect.DeepEqual(got, want) {
			t.Errorf("accounts = %v, want %v", got, want)
		}
	})

	t.Run("missing platform dir", func(t *testing.T) {
		got, err := ListAccounts(filepath.Join(t.TempDir(), "none"))
		if err != nil || len(got) != 0 {
			t.Errorf("got %v, %v", got, err)
		}
	})
}
