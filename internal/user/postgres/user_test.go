package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	"github.com/frahmantamala/credit-marketplace/internal/core/database"
	userDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/user"
)

func TestUserRepository(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "User Repository Suite")
}

var _ = ginkgo.Describe("Repository", func() {
	var (
		db   *gorm.DB
		repo *Repository
		ctx  context.Context
		u    *userDatamodel.User
	)

	ginkgo.BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
			NowFunc: func() time.Time { return time.Now().UTC() },
		})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		// one connection keeps every statement on the same in-memory database
		sqlDB, err := db.DB()
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		gomega.Expect(db.AutoMigrate(&userDatamodel.User{})).To(gomega.Succeed())

		repo = NewRepository(db)
		ctx = context.Background()

		u = &userDatamodel.User{Email: "ada@example.com", Name: "Ada", PasswordHash: "x", CreditBalance: 5}
		gomega.Expect(db.Create(u).Error).To(gomega.Succeed())
	})

	ginkgo.Describe("AddCredits", func() {
		ginkgo.It("increments the balance", func() {
			gomega.Expect(repo.AddCredits(ctx, u.ID, 100)).To(gomega.Succeed())

			credits, err := repo.GetCredits(ctx, u.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(credits).To(gomega.Equal(int64(105)))
		})

		ginkgo.It("reports unknown users", func() {
			err := repo.AddCredits(ctx, 9999, 10)
			gomega.Expect(err).To(gomega.MatchError(errors.ErrUserNotFound))
		})

		ginkgo.It("rejects non-positive amounts", func() {
			gomega.Expect(repo.AddCredits(ctx, u.ID, 0)).ToNot(gomega.Succeed())
		})

		ginkgo.It("loses no increments under concurrency", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer ginkgo.GinkgoRecover()
					gomega.Expect(repo.AddCredits(ctx, u.ID, 10)).To(gomega.Succeed())
				}()
			}
			wg.Wait()

			credits, err := repo.GetCredits(ctx, u.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(credits).To(gomega.Equal(int64(205)))
		})

		ginkgo.It("rolls back with the surrounding transaction", func() {
			tx := database.NewTransactor(db)
			boom := errors.NewInternalError("boom", nil)

			err := tx.WithinTransaction(ctx, func(txCtx context.Context) error {
				gomega.Expect(repo.AddCredits(txCtx, u.ID, 50)).To(gomega.Succeed())
				return boom
			})
			gomega.Expect(err).To(gomega.MatchError(boom))

			credits, err := repo.GetCredits(ctx, u.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(credits).To(gomega.Equal(int64(5)))
		})
	})

	ginkgo.Describe("SpendCredit", func() {
		ginkgo.It("decrements until the balance is empty", func() {
			for i := 0; i < 5; i++ {
				gomega.Expect(repo.SpendCredit(ctx, u.ID)).To(gomega.Succeed())
			}

			err := repo.SpendCredit(ctx, u.ID)
			gomega.Expect(err).To(gomega.MatchError(errors.ErrInsufficientCredits))

			credits, err := repo.GetCredits(ctx, u.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(credits).To(gomega.BeZero())
		})

		ginkgo.It("reports unknown users", func() {
			gomega.Expect(repo.SpendCredit(ctx, 9999)).To(gomega.MatchError(errors.ErrUserNotFound))
		})
	})

	ginkgo.Describe("GetByID", func() {
		ginkgo.It("returns ErrUserNotFound for missing rows", func() {
			_, err := repo.GetByID(ctx, 424242)
			gomega.Expect(err).To(gomega.MatchError(errors.ErrUserNotFound))
		})
	})
})
