package cache

import (
	"reflect"
	"testing"
)

func TestInvalidationSet(t *testing.T) {
	got := InvalidationSet("t1", []string{"bob", "alice"}, []string{"alice", "carol", ""})
	want := []string{
		"task:t1",
		"tasks:alice", "assignedTasks:alice", "history:alice",
		"tasks:bob", "assignedTasks:bob", "history:bob",
		"tasks:carol", "assignedTasks:carol", "history:carol",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("InvalidationSet() = %v, want %v", got, want)
	}
}

func TestInvalidationSetTaskOnly(t *testing.T) {
	got := InvalidationSet("t1")
	if !reflect.DeepEqual(got, []string{"task:t1"}) {
		t.Errorf("InvalidationSet() = %v, want [task:t1]", got)
	}
}
