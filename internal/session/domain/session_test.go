package domain

import "testing"

func TestRecord_Valid(t *testing.T) {
	testCases := []struct {
		name string
		rec  Record
		want bool
	}{
		{"both set", Record{Token: "t", User: &UserProfile{ID: "u1"}}, true},
		{"both empty", Record{}, true},
		{"token only", Record{Token: "t"}, false},
		{"user only", Record{User: &UserProfile{ID: "u1"}}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rec.Valid(); got != tc.want {
				t.Errorf("Valid() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := Session{Token: "t", User: &UserProfile{ID: "u1", Skills: []string{"plumbing"}}, Rehydrated: true}
	c := s.Clone()
	c.User.FullName = "changed"
	c.User.Skills[0] = "painting"
	if s.User.FullName != "" {
		t.Error("Clone shares the user struct")
	}
	if s.User.Skills[0] != "plumbing" {
		t.Error("Clone shares the skills slice")
	}
	if !c.Rehydrated || c.Token != "t" {
		t.Error("Clone dropped scalar fields")
	}
}

func TestSession_Authenticated(t *testing.T) {
	if (Session{}).Authenticated() {
		t.Error("empty session should not be authenticated")
	}
	if !(Session{Token: "t", User: &UserProfile{}}).Authenticated() {
		t.Error("session with token should be authenticated")
	}
}
