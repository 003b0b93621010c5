package discovery

import (
	"reflect"
	"testing"
)

func TestInfoTXT(t *testing.T) {
	got := Info{Instance: "host", Version: "dev", Boards: []string{"zeta", "default"}}.txt()
	want := []string{"app=sketchsync", "version=dev", "board=default", "board=zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("txt() = %v, want %v", got, want)
	}
	if got := (Info{}).txt(); len(got) != 1 {
		t.Fatalf("expected only the app record, got %v", got)
	}
}

func TestAdvertiseValidates(t *testing.T) {
	if _, err := Advertise(0, Info{Instance: "x"}); err == nil {
		t.Fatal("expected port error")
	}
	if _, err := Advertise(3001, Info{}); err == nil {
		t.Fatal("expected instance error")
	}
}
