package blehost

import "testing"

func TestGetLoggerSingleton(t *testing.T) {
	if GetLogger() != GetLogger() {
		t.Fatal("logger not a singleton")
	}
}

func TestChildLoggerDistinct(t *testing.T) {
	l := GetLogger()
	if l.ChildLogger(map[string]interface{}{"sub": "x"}) == l {
		t.Fatal("child logger is the parent")
	}
}

func TestSetLogger(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	repl := orig.ChildLogger(map[string]interface{}{"test": true})
	SetLogger(repl)

	if GetLogger() != repl {
		t.Fatal("set logger not returned")
	}
}
