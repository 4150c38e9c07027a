// Package seed provides database seeding utilities for development and demos.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"koydenal/internal/models"
	"koydenal/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed categories.yml
var categoriesYAML []byte

// DemoPassword is the password of every account created by the seeder.
const DemoPassword = "password123"

const (
	demoAdminEmail  = "demo-admin@koydenal.local"
	demoSellerEmail = "demo-satici@koydenal.local"
)

var (
	units     = []string{"kg", "adet", "litre", "kasa", "çuval", "demet"}
	locations = []string{
		"İzmir, Tire", "Antalya, Kumluca", "Bursa, İnegöl", "Konya, Çumra", "Manisa, Akhisar",
		"Aydın, Söke", "Hatay, Antakya", "Rize, Çayeli", "Ordu, Ünye", "Denizli, Çivril",
	}
	rejectionReasons = []string{
		"Fiyat bilgisi eksik",
		"Ürün fotoğrafı uygunsuz",
		"İletişim bilgisi doğrulanamadı",
	}
)

// Options controls what the seeder produces.
type Options struct {
	Listings int
	// Approved is the share of demo listings created already approved, in [0,1].
	Approved float64
	// Rejected is the share created rejected; the remainder stays pending.
	Rejected float64
}

// DefaultOptions mirrors the cmd/seed defaults.
func DefaultOptions() Options {
	return Options{Listings: 40, Approved: 0.6, Rejected: 0.1}
}

// LoadCategories parses the embedded category fixture.
func LoadCategories() ([]models.Category, error) {
	var categories []models.Category
	if err := yaml.Unmarshal(categoriesYAML, &categories); err != nil {
		return nil, fmt.Errorf("failed to parse category fixture: %w", err)
	}
	for i, c := range categories {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Slug) == "" {
			return nil, fmt.Errorf("category fixture entry %d is missing name or slug", i)
		}
	}
	return categories, nil
}

// Categories upserts the built-in categories by slug.
func Categories(ctx context.Context, repo repository.CategoryRepository) error {
	categories, err := LoadCategories()
	if err != nil {
		return err
	}
	if err := repo.Upsert(ctx, categories); err != nil {
		return fmt.Errorf("failed to upsert categories: %w", err)
	}
	log.Printf("✓ Upserted %d categories", len(categories))
	return nil
}

// Seeder writes demo accounts and listings.
type Seeder struct {
	db  *gorm.DB
	rng *rand.Rand
}

// NewSeeder creates a Seeder. A zero seed picks one from the clock.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Seeder{db: db, rng: rand.New(rand.NewSource(seed))}
}

// ClearListings removes every listing and the rows that hang off them.
// Users and categories are kept.
func (s *Seeder) ClearListings(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.AdminAction{},
			&models.Favorite{},
			&models.ListingMessage{},
			&models.ListingView{},
			&models.Listing{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to clear %T: %w", model, err)
			}
		}
		return nil
	})
}

// DemoAccounts ensures an approved admin and an approved seller exist.
func (s *Seeder) DemoAccounts(ctx context.Context) (admin, seller *models.User, err error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash demo password: %w", err)
	}

	now := time.Now()
	admin, err = s.ensureUser(ctx, models.User{
		Email:    demoAdminEmail,
		Password: string(hash),
		FullName: "Demo Yönetici",
		Role:     models.RoleAdmin,
		Status:   models.StatusApproved,
	})
	if err != nil {
		return nil, nil, err
	}

	seller, err = s.ensureUser(ctx, models.User{
		Email:      demoSellerEmail,
		Password:   string(hash),
		FullName:   gofakeit.Name(),
		Phone:      demoPhone(s.rng),
		Address:    pick(s.rng, locations),
		Role:       models.RoleUser,
		Status:     models.StatusApproved,
		ApprovedBy: &admin.ID,
		ApprovedAt: &now,
	})
	if err != nil {
		return nil, nil, err
	}
	return admin, seller, nil
}

func (s *Seeder) ensureUser(ctx context.Context, u models.User) (*models.User, error) {
	var existing models.User
	err := s.db.WithContext(ctx).Where(models.User{Email: u.Email}).Attrs(u).FirstOrCreate(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user %s: %w", u.Email, err)
	}
	return &existing, nil
}

// Listings creates opts.Listings demo listings spread across the active categories.
// Roughly half belong to the demo seller; the rest are guest submissions.
func (s *Seeder) Listings(ctx context.Context, opts Options) ([]models.Listing, error) {
	if opts.Listings <= 0 {
		return nil, nil
	}

	var categories []models.Category
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("no active categories; seed categories first")
	}

	admin, seller, err := s.DemoAccounts(ctx)
	if err != nil {
		return nil, err
	}

	listings := make([]models.Listing, 0, opts.Listings)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := 0; i < opts.Listings; i++ {
			l := s.buildListing(categories[s.rng.Intn(len(categories))])
			if s.rng.Intn(2) == 0 {
				l.UserID = &seller.ID
				l.ContactPerson = seller.FullName
			}

			var action *models.AdminAction
			roll := s.rng.Float64()
			switch {
			case roll < opts.Approved:
				at := l.CreatedAt.Add(time.Duration(1+s.rng.Intn(48)) * time.Hour)
				l.Status = models.StatusApproved
				l.ApprovedBy = &admin.ID
				l.ApprovedAt = &at
				action = &models.AdminAction{AdminID: admin.ID, Action: models.AdminActionApproved, CreatedAt: at}
			case roll < opts.Approved+opts.Rejected:
				reason := pick(s.rng, rejectionReasons)
				l.Status = models.StatusRejected
				l.RejectionReason = &reason
				action = &models.AdminAction{AdminID: admin.ID, Action: models.AdminActionRejected, Reason: &reason}
			}

			if err := tx.Create(&l).Error; err != nil {
				return fmt.Errorf("failed to create listing %d: %w", i, err)
			}
			if action != nil {
				action.ListingID = l.ID
				if err := tx.Create(action).Error; err != nil {
					return fmt.Errorf("failed to record admin action: %w", err)
				}
			}
			listings = append(listings, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✓ Created %d listings", len(listings))
	return listings, nil
}

func (s *Seeder) buildListing(category models.Category) models.Listing {
	product := gofakeit.Vegetable()
	if s.rng.Intn(2) == 0 {
		product = gofakeit.Fruit()
	}
	quantity := 1 + s.rng.Intn(500)
	unit := pick(s.rng, units)

	l := models.Listing{
		CategoryID:       category.ID,
		Title:            fmt.Sprintf("%s %s - %d %s", category.Name, product, quantity, unit),
		Description:      gofakeit.Paragraph(1, 3, 12, " "),
		Price:            gofakeit.Price(5, 2500),
		Currency:         models.DefaultCurrency,
		Quantity:         quantity,
		Unit:             unit,
		Location:         pick(s.rng, locations),
		ListingType:      models.ListingTypeSale,
		ContactPerson:    gofakeit.Name(),
		ContactPhone:     demoPhone(s.rng),
		PreferredContact: "phone",
		Images:           models.StringList{fmt.Sprintf("https://picsum.photos/seed/%s/800/600", gofakeit.UUID())},
		Status:           models.StatusPending,
		CreatedAt:        time.Now().Add(-time.Duration(s.rng.Intn(30*24)) * time.Hour),
	}
	switch s.rng.Intn(10) {
	case 0:
		l.ListingType = models.ListingTypeWanted
	case 1:
		l.ListingType = models.ListingTypeBarter
	}
	return l
}

// demoPhone returns a Turkish mobile number in the 05XX XXX XX XX layout.
func demoPhone(rng *rand.Rand) string {
	return fmt.Sprintf("05%02d %03d %02d %02d", 30+rng.Intn(25), rng.Intn(1000), rng.Intn(100), rng.Intn(100))
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}
