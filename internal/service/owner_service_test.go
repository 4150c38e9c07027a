package service

import (
	"context"
	"testing"

	"koydenal/internal/models"
	"koydenal/internal/repository"
	"koydenal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) ownerService() *OwnerService {
	return NewOwnerService(e.listings, e.cats,
		repository.NewFavoriteRepository(e.db), repository.NewMessageRepository(e.db), e.store)
}

func TestOwnerService_ManageOwnListings(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ownerService()
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, models.RoleUser, models.StatusApproved)
	stranger := testutil.CreateUser(t, env.db, models.RoleUser, models.StatusApproved)
	mine := testutil.CreateListing(t, env.db, env.category.ID, testutil.WithOwner(owner.ID))
	testutil.CreateListing(t, env.db, env.category.ID, testutil.WithOwner(owner.ID), testutil.WithStatus(models.StatusRejected))
	testutil.CreateListing(t, env.db, env.category.ID, testutil.WithOwner(stranger.ID))

	page, err := svc.MyListings(ctx, owner.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	fields := validFields()
	fields.Title = "Köy tereyağı 1 kg paket"
	_, err = svc.UpdateMyListing(ctx, stranger.ID, mine.ID, fields)
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	updated, err := svc.UpdateMyListing(ctx, owner.ID, mine.ID, fields)
	require.NoError(t, err)
	assert.Equal(t, "Köy tereyağı 1 kg paket", updated.Title)
	assert.Equal(t, models.StatusPending, updated.Status)

	assert.True(t, models.IsCode(svc.DeleteMyListing(ctx, stranger.ID, mine.ID), models.CodeForbidden))
	require.NoError(t, svc.DeleteMyListing(ctx, owner.ID, mine.ID))
	assert.Zero(t, countRows(t, env.db, &models.Listing{}, "id = ?", mine.ID))
}

func TestOwnerService_Favorites(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ownerService()
	ctx := context.Background()
	buyer := testutil.CreateUser(t, env.db, models.RoleUser, models.StatusApproved)
	approved := testutil.CreateListing(t, env.db, env.category.ID, testutil.WithStatus(models.StatusApproved))
	pending := testutil.CreateListing(t, env.db, env.category.ID)

	require.NoError(t, svc.AddFavorite(ctx, buyer.ID, approved.ID))
	require.NoError(t, svc.AddFavorite(ctx, buyer.ID, approved.ID))
	assert.True(t, models.IsCode(svc.AddFavorite(ctx, buyer.ID, pending.ID), models.CodeNotFound))

	favs, err := svc.Favorites(ctx, buyer.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	require.NotNil(t, favs[0].Listing)
	assert.Equal(t, approved.ID, favs[0].Listing.ID)

	require.NoError(t, svc.RemoveFavorite(ctx, buyer.ID, approved.ID))
	favs, err = svc.Favorites(ctx, buyer.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, favs)
}

func TestOwnerService_Messages(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ownerService()
	ctx := context.Background()
	seller := testutil.CreateUser(t, env.db, models.RoleUser, models.StatusApproved)
	listing := testutil.CreateListing(t, env.db, env.category.ID,
		testutil.WithOwner(seller.ID), testutil.WithStatus(models.StatusApproved))

	msg, err := svc.SendMessage(ctx, SendMessageInput{
		ListingID:     listing.ID,
		SenderName:    " Zeynep ",
		SenderContact: "0533 000 00 00",
		Body:          "Merhaba, 20 kg alabilir miyim?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Zeynep", msg.SenderName)
	assert.Nil(t, msg.SenderID)

	_, err = svc.SendMessage(ctx, SendMessageInput{ListingID: listing.ID, SenderName: "Z", Body: "?"})
	assertFieldErrors(t, err, "sender_name", "sender_contact", "body")

	_, err = svc.SendMessage(ctx, SendMessageInput{
		ListingID: listing.ID, SenderID: &seller.ID,
		SenderName: "Satıcı", SenderContact: "x", Body: "Kendime mesaj atıyorum",
	})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	inbox, err := svc.Inbox(ctx, seller.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, msg.ID, inbox[0].ID)
}
