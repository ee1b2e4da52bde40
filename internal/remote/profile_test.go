package remote

import "testing"

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{"password auth", Profile{Host: "h", Username: "u", AuthType: AuthPassword, Password: "p"}, false},
		{"key auth", Profile{Host: "h", Username: "u", AuthType: AuthKey, PrivateKey: []byte("pem")}, false},
		{"missing host", Profile{Username: "u", AuthType: AuthPassword}, true},
		{"missing username", Profile{Host: "h", AuthType: AuthPassword}, true},
		{"unknown auth type", Profile{Host: "h", Username: "u", AuthType: "telepathy"}, true},
		{"key auth without key", Profile{Host: "h", Username: "u", AuthType: AuthKey}, true},
	}

	for _, tt := range tests {
		err := tt.profile.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%s) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestProfile_Addr(t *testing.T) {
	tests := []struct {
		profile Profile
		want    string
	}{
		{Profile{Host: "example.com", Port: 2222}, "example.com:2222"},
		{Profile{Host: "example.com"}, "example.com:22"},
		{Profile{Host: "::1", Port: 22}, "[::1]:22"},
	}

	for _, tt := range tests {
		if got := tt.profile.Addr(22); got != tt.want {
			t.Errorf("Addr(22) for %q = %q, want %q", tt.profile.Host, got, tt.want)
		}
	}
}
