package remote

import "testing"

func TestAuthMethods_Password(t *testing.T) {
	methods, err := authMethods(Profile{AuthType: AuthPassword, Password: "secret"})
	if err != nil {
		t.Fatalf("authMethods() error = %v", err)
	}
	if len(methods) != 1 {
		t.Errorf("got %d auth methods, want 1", len(methods))
	}
}

func TestAuthMethods_UnparsableKeyFails(t *testing.T) {
	if _, err := authMethods(Profile{AuthType: AuthKey, PrivateKey: []byte("not a pem block")}); err == nil {
		t.Fatal("authMethods() expected error for garbage key material")
	}
}

func TestAuthMethods_UnknownType(t *testing.T) {
	if _, err := authMethods(Profile{AuthType: "telepathy"}); err == nil {
		t.Fatal("authMethods() expected error for unknown auth type")
	}
}
