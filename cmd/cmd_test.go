package cmd

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	txDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/transaction"
	userDatamodel "github.com/frahmantamala/credit-marketplace/internal/core/datamodel/user"
	"github.com/frahmantamala/credit-marketplace/internal/core/events"
)

func TestCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cmd Suite")
}

var _ = Describe("lifecycleEvent", func() {
	orderID := "order_1"

	DescribeTable("rebuilds the event for the current state",
		func(t *txDatamodel.Transaction, eventType string) {
			Expect(lifecycleEvent(t, "INR", 100).EventType()).To(Equal(eventType))
		},
		Entry("submitted", &txDatamodel.Transaction{ID: "a", PaymentStatus: txDatamodel.StatusPending}, events.EventTypeTransactionSubmitted),
		Entry("order attached", &txDatamodel.Transaction{ID: "b", PaymentStatus: txDatamodel.StatusPending, OrderID: &orderID}, events.EventTypeOrderCreated),
		Entry("completed", &txDatamodel.Transaction{ID: "c", PaymentStatus: txDatamodel.StatusCompleted, OrderID: &orderID}, events.EventTypePaymentCompleted),
	)

	It("converts the order amount to minor units", func() {
		e := lifecycleEvent(&txDatamodel.Transaction{ID: "b", Amount: 50, PaymentStatus: txDatamodel.StatusPending, OrderID: &orderID}, "INR", 100)
		Expect(e.Payload()).To(HaveKeyWithValue("amount_minor", int64(5000)))
	})
})

var _ = Describe("seed", func() {
	var db *gorm.DB

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
			NowFunc: func() time.Time { return time.Now().UTC() },
		})
		Expect(err).ToNot(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).ToNot(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&userDatamodel.User{}, &txDatamodel.Transaction{})).To(Succeed())
	})

	countUsers := func() int64 {
		var n int64
		Expect(db.Model(&userDatamodel.User{}).Count(&n).Error).To(Succeed())
		return n
	}

	It("creates the demo accounts once", func() {
		Expect(seed(context.Background(), db, bcrypt.MinCost, false)).To(Succeed())
		Expect(seed(context.Background(), db, bcrypt.MinCost, false)).To(Succeed())
		Expect(countUsers()).To(Equal(int64(len(seedUsers))))

		var demo userDatamodel.User
		Expect(db.Where("email = ?", "demo@mail.com").First(&demo).Error).To(Succeed())
		Expect(demo.CreditBalance).To(Equal(int64(5)))
		Expect(bcrypt.CompareHashAndPassword([]byte(demo.PasswordHash), []byte(seedPassword))).To(Succeed())
	})

	It("resets balances with --clear", func() {
		Expect(seed(context.Background(), db, bcrypt.MinCost, false)).To(Succeed())
		Expect(db.Model(&userDatamodel.User{}).Where("email = ?", "demo@mail.com").Update("credit_balance", 99).Error).To(Succeed())

		Expect(seed(context.Background(), db, bcrypt.MinCost, true)).To(Succeed())

		var demo userDatamodel.User
		Expect(db.Where("email = ?", "demo@mail.com").First(&demo).Error).To(Succeed())
		Expect(demo.CreditBalance).To(Equal(int64(5)))
	})
})
