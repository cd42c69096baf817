package hide

import (
	"os"
	"reflect"
	"testing"

	"github.com/spf13/afero"

	"github.com/soar/padmux/internal/gamepad"
)

func fakeSysfs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	dirs := []string{
		"/sys/class/input/event7/device/event7",
		"/sys/class/input/event7/device/js1",
		"/sys/class/input/event7/device/capabilities",
		"/sys/class/input/event7/device/device/hidraw/hidraw3",
	}
	for _, d := range dirs {
		if err := fs.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range []string{"/dev/input/event7", "/dev/input/js1", "/dev/hidraw3"} {
		if err := afero.WriteFile(fs, f, nil, restoredMode); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func mode(t *testing.T, fs afero.Fs, name string) os.FileMode {
	t.Helper()
	fi, err := fs.Stat(name)
	if err != nil {
		t.Fatal(err)
	}
	return fi.Mode().Perm()
}

func TestRelatedNodes(t *testing.T) {
	fs := fakeSysfs(t)
	got, err := RelatedNodes(fs, "/dev/input/event7")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/dev/hidraw3", "/dev/input/event7", "/dev/input/js1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RelatedNodes = %v, want %v", got, want)
	}
}

func TestHideAndRestore(t *testing.T) {
	fs := fakeSysfs(t)
	h := New(fs, System)
	info := gamepad.Info{ID: "event7", Name: "Pad", Path: "/dev/input/event7"}

	if err := h.Hide(info); err != nil {
		t.Fatal(err)
	}
	if err := h.Hide(info); err != nil {
		t.Fatal(err)
	}
	if n := len(h.Hidden()); n != 3 {
		t.Errorf("hidden %d nodes, want 3", n)
	}
	for _, node := range h.Hidden() {
		if m := mode(t, fs, node); m != hiddenMode {
			t.Errorf("%s mode = %o", node, m)
		}
	}

	if err := h.Restore(); err != nil {
		t.Fatal(err)
	}
	for _, node := range []string{"/dev/input/event7", "/dev/input/js1", "/dev/hidraw3"} {
		if m := mode(t, fs, node); m != restoredMode {
			t.Errorf("%s mode after restore = %o", node, m)
		}
	}
	if len(h.Hidden()) != 0 {
		t.Error("restore should forget hidden nodes")
	}
}

func TestHideNone(t *testing.T) {
	fs := fakeSysfs(t)
	h := New(fs, None)
	if err := h.Hide(gamepad.Info{Path: "/dev/input/event7"}); err != nil {
		t.Fatal(err)
	}
	if m := mode(t, fs, "/dev/input/event7"); m != restoredMode {
		t.Errorf("none should not touch nodes, mode = %o", m)
	}
}

func TestParseType(t *testing.T) {
	if typ, err := ParseType("System"); err != nil || typ != System {
		t.Errorf("ParseType(System) = %v %v", typ, err)
	}
	if _, err := ParseType("steam"); err == nil {
		t.Error("steam is not supported")
	}
	if typ, err := ParseType(""); err != nil || typ != None {
		t.Errorf("empty = %v %v", typ, err)
	}
}
