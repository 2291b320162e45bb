package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
)

// FirebaseResolver looks uids up in Firebase Authentication.
type FirebaseResolver struct {
	auth *auth.Client
}

// NewFirebaseResolver initializes a Firebase app for projectID and returns a
// resolver backed by its Auth client. Credentials come from the environment
// (GOOGLE_APPLICATION_CREDENTIALS or the metadata server).
func NewFirebaseResolver(ctx context.Context, projectID string) (*FirebaseResolver, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase auth: %w", err)
	}

	return &FirebaseResolver{auth: client}, nil
}

// EmailForUID returns the email of the Firebase user with the given uid.
func (r *FirebaseResolver) EmailForUID(ctx context.Context, uid string) (string, error) {
	user, err := r.auth.GetUser(ctx, uid)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return "", ErrNoEmail
		}
		return "", fmt.Errorf("get firebase user %s: %w", uid, err)
	}

	if user.UserInfo == nil || user.Email == "" {
		return "", ErrNoEmail
	}

	return user.Email, nil
}
