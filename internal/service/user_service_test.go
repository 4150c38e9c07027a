package service

import (
	"context"
	"testing"

	"koydenal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserService_Register(t *testing.T) {
	env := newTestEnv(t)
	svc := NewUserService(env.users)
	svc.bcryptCost = bcrypt.MinCost
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Email:    " Fatma@Koydenal.TEST ",
		Password: "Bahce2024",
		FullName: "Fatma Kaya",
		Phone:    "+90 544 321 00 11",
	})
	require.NoError(t, err)
	assert.Equal(t, "fatma@koydenal.test", user.Email)
	assert.Equal(t, models.StatusPending, user.Status)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, "5443210011", user.Phone)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("Bahce2024")))

	_, err = svc.Register(ctx, RegisterInput{Email: "fatma@koydenal.test", Password: "Bahce2024", FullName: "Fatma Kaya"})
	assert.True(t, models.IsCode(err, models.CodeConflict))

	_, err = svc.Register(ctx, RegisterInput{Email: "yeni@koydenal.test", Password: "sadeceharf", FullName: "Yeni Üye"})
	assertFieldErrors(t, err, "password")

	_, err = svc.Register(ctx, RegisterInput{Email: "eposta-degil", Password: "Bahce2024", FullName: "A"})
	assertFieldErrors(t, err, "email", "full_name")

	profile, err := svc.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, profile.ID)
}
