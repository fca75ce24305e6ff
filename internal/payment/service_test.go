package payment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	internal "github.com/frahmantamala/course-marketplace/internal"
	coupondm "github.com/frahmantamala/course-marketplace/internal/core/datamodel/coupon"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/payment"
	"github.com/frahmantamala/course-marketplace/internal/core/events"
	paymentsvc "github.com/frahmantamala/course-marketplace/internal/payment"
	"github.com/frahmantamala/course-marketplace/internal/slipverify"
)

// fakeStore is an in-memory RepositoryAPI and EntitlementTx. InTransaction
// hands the store itself to the callback and holds txMu for the whole
// callback, standing in for the row lock: concurrent transactions serialize
// the way FOR UPDATE serializes them. Row copies leave mutations invisible
// until UpdatePayment.
type fakeStore struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	payments    map[string]*payment.Payment
	enrollments map[int64]map[int64]bool
	bundles     map[int64][]int64
	redeemed    map[string]map[int64]bool
	redeemCalls int
	grantCalls  int
	failTx      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		payments:    make(map[string]*payment.Payment),
		enrollments: make(map[int64]map[int64]bool),
		bundles:     make(map[int64][]int64),
		redeemed:    make(map[string]map[int64]bool),
	}
}

func copyPayment(p *payment.Payment) *payment.Payment {
	cp := *p
	return &cp
}

func (f *fakeStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, internal.ErrPaymentNotFound
	}
	return copyPayment(p), nil
}

func (f *fakeStore) GetByExternalRef(ctx context.Context, ref string) (*payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ExternalRef != nil && *p.ExternalRef == ref {
			return copyPayment(p), nil
		}
	}
	return nil, internal.ErrPaymentNotFound
}

func (f *fakeStore) FindReusablePending(ctx context.Context, userID int64, courseID, bundleID *int64, method string) (*payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.UserID != userID || p.Method != method || p.Status != payment.StatusPending {
			continue
		}
		if courseID != nil && (p.CourseID == nil || *p.CourseID != *courseID) {
			continue
		}
		if bundleID != nil && (p.BundleID == nil || *p.BundleID != *bundleID) {
			continue
		}
		return copyPayment(p), nil
	}
	return nil, nil
}

func (f *fakeStore) ListForUser(ctx context.Context, userID int64) ([]payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []payment.Payment
	for _, p := range f.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListStuckVerifying(ctx context.Context, olderThan time.Time, limit int) ([]payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []payment.Payment
	for _, p := range f.payments {
		if p.Status == payment.StatusVerifying && p.UpdatedAt.Before(olderThan) {
			out = append(out, *p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) SetExternalRef(ctx context.Context, id, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return internal.ErrPaymentNotFound
	}
	p.ExternalRef = &ref
	return nil
}

func (f *fakeStore) InTransaction(ctx context.Context, fn func(tx paymentsvc.EntitlementTx) error) error {
	if f.failTx != nil {
		return f.failTx
	}
	f.txMu.Lock()
	defer f.txMu.Unlock()
	return fn(f)
}

func (f *fakeStore) PaymentForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	return f.Get(ctx, id)
}

func (f *fakeStore) CreatePayment(ctx context.Context, p *payment.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.ID] = copyPayment(p)
	return nil
}

func (f *fakeStore) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.ID] = copyPayment(p)
	return nil
}

func (f *fakeStore) GrantCourse(ctx context.Context, userID, courseID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grantCalls++
	if f.enrollments[userID] == nil {
		f.enrollments[userID] = make(map[int64]bool)
	}
	if f.enrollments[userID][courseID] {
		return false, nil
	}
	f.enrollments[userID][courseID] = true
	return true, nil
}

func (f *fakeStore) BundleCourseIDs(ctx context.Context, bundleID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bundles[bundleID], nil
}

func (f *fakeStore) RedeemCouponIfAbsent(ctx context.Context, code string, userID int64, courseID *int64, discount float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redeemCalls++
	if f.redeemed[code] == nil {
		f.redeemed[code] = make(map[int64]bool)
	}
	if f.redeemed[code][userID] {
		return false, nil
	}
	f.redeemed[code][userID] = true
	return true, nil
}

func (f *fakeStore) enrolled(userID, courseID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enrollments[userID][courseID]
}

type fakeCatalog struct {
	price   float64
	err     error
	bundles map[int64][]int64
}

func (f *fakeCatalog) PriceForTarget(ctx context.Context, courseID, bundleID *int64) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.price, nil
}

func (f *fakeCatalog) BundleCourseIDs(ctx context.Context, bundleID int64) ([]int64, error) {
	return f.bundles[bundleID], nil
}

type fakeCoupons struct {
	discount float64
	err      error
}

func (f *fakeCoupons) Validate(ctx context.Context, code string, userID int64, courseID *int64, price float64) (*coupondm.Coupon, float64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	return &coupondm.Coupon{Code: code}, f.discount, nil
}

type fakeGateway struct {
	sessionID string
	url       string
	err       error
	calls     int
}

func (f *fakeGateway) CreateSession(ctx context.Context, paymentID string, amount float64) (string, string, error) {
	f.calls++
	if f.err != nil {
		return "", "", f.err
	}
	return f.sessionID, f.url, nil
}

type fakeSlips struct {
	result    *slipverify.Result
	err       error
	gotAmount float64
}

func (f *fakeSlips) Verify(ctx context.Context, fileName string, file io.Reader, amount float64) (*slipverify.Result, error) {
	f.gotAmount = amount
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeRevoker struct {
	mu        sync.Mutex
	userID    int64
	courseIDs []int64
	paymentID string
	calls     int
}

func (f *fakeRevoker) ReconcileRefund(ctx context.Context, userID int64, courseIDs []int64, refundedPaymentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.userID = userID
	f.courseIDs = courseIDs
	f.paymentID = refundedPaymentID
	return nil
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) {
	b.Publish(ctx, event)
}

func (b *recordingBus) Subscribe(eventName string, handler events.Handler) {}

func (b *recordingBus) named(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

func ptrInt64(v int64) *int64 { return &v }

func ptrString(v string) *string { return &v }

var _ = Describe("Payment Service", func() {
	var (
		store   *fakeStore
		cat     *fakeCatalog
		coupons *fakeCoupons
		gw      *fakeGateway
		slips   *fakeSlips
		revoker *fakeRevoker
		bus     *recordingBus
		service *paymentsvc.Service
		ctx     context.Context
	)

	const userID int64 = 42

	BeforeEach(func() {
		store = newFakeStore()
		cat = &fakeCatalog{price: 1000, bundles: map[int64][]int64{7: {101, 102, 103}}}
		coupons = &fakeCoupons{}
		gw = &fakeGateway{sessionID: "sess_abc", url: "https://pay.example.com/sess_abc"}
		slips = &fakeSlips{}
		revoker = &fakeRevoker{}
		bus = &recordingBus{}
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = paymentsvc.NewService(store, cat, coupons, gw, slips, revoker, bus, slogger, "THB")
		ctx = context.Background()
	})

	Describe("Checkout", func() {
		Context("with a card payment", func() {
			It("should create a pending payment with a redirect URL", func() {
				resp, err := service.Checkout(ctx, userID, &paymentsvc.CheckoutRequest{
					CourseID: ptrInt64(101),
					Method:   payment.MethodCard,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.Status).To(Equal(payment.StatusPending))
				Expect(resp.Amount).To(Equal(1000.0))
				Expect(resp.Currency).To(Equal("THB"))
				Expect(resp.RedirectURL).NotTo(BeNil())
				Expect(*resp.RedirectURL).To(Equal("https://pay.example.com/sess_abc"))

				stored, err := store.Get(ctx, resp.PaymentID)
				Expect(err).NotTo(HaveOccurred())
				Expect(stored.ExternalRef).NotTo(BeNil())
				Expect(*stored.ExternalRef).To(Equal("sess_abc"))
			})

			It("should reuse the open pending payment on retry", func() {
				first, err := service.Checkout(ctx, userID, &paymentsvc.CheckoutRequest{
					CourseID: ptrInt64(101),
					Method:   payment.MethodCard,
				})
				Expect(err).NotTo(HaveOccurred())

				second, err := service.Checkout(ctx, userID, &paymentsvc.CheckoutRequest{
					CourseID: ptrInt64(101),
					Method:   payment.MethodCard,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(second.PaymentID).To(Equal(first.PaymentID))
			})

			It("should refresh the quote on the reused payment", func() {
				first, err := service.Checkout(ctx, userID, &paymentsvc.CheckoutRequest{
					CourseID: ptrInt64(101),
					Method:   payment.MethodCard,
				})
				Expect(err).NotTo(HaveOccurred())

				cat.price = 800
				second, err := service.Checkout(ctx, userID, &paymentsvc.CheckoutRequest{
					CourseID: ptrInt64(101),
					Method:   payment.MethodCard,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(second.PaymentID).To(Equal(first.PaymentID))
				Expect(second.Amount).To(Equal(800.0))
			})

			It("should surface a gateway outage as an external error", func() {
				gw.err = errors.New("connection refused")
				_, err := service.Checkout(ctx, userID, &paymentsvc.CheckoutRequest{
					CourseID: ptrInt64(101),
					Method:   payment.MethodCard,
				})
				Expect(err).To(HaveOccurred())
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.StatusCode).To(Equal(502))
			})
		})

		Context("with a coupon covering the full price", func() {
			BeforeEach(func() {
				coupons.discount = 1000
			})

			It("should settle immediately without the gateway", func() {
				resp, err := service.Checkout(ctx, userID, &paymentsvc.CheckoutRequest{
					CourseID:   ptrInt64(101),
					Method:     payment.MethodCard,
					CouponCode: ptrString("FREE100"),
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.Status).To(Equal(payment.StatusCompleted))
				Expect(resp.Amount).To(BeZero())
				Expect(resp.RedirectURL).To(BeNil())
				Expect(gw.calls).To(BeZero())

				Expect(store.enrolled(userID, 101)).To(BeTrue())
				Expect(store.redeemCalls).To(Equal(1))
				Expect(bus.named(events.PaymentCompletedEvent)).To(HaveLen(1))
				Expect(bus.named(events.EnrollmentCreatedEvent)).To(HaveLen(1))
			})

			It("should reject the checkout when the user is already enrolled", func() {
				_, err := store.GrantCourse(ctx, userID, 101)
				Expect(err).NotTo(HaveOccurred())

				_, err = service.Checkout(ctx, userID, &paymentsvc.CheckoutRequest{
					CourseID:   ptrInt64(101),
					Method:     payment.MethodCard,
					CouponCode: ptrString("FREE100"),
				})
				Expect(err).To(HaveOccurred())
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodeAlreadyEnrolled))
				Expect(bus.named(events.PaymentCompletedEvent)).To(BeEmpty())
			})
		})

		Context("with the free method on a priced target", func() {
			It("should refuse", func() {
				_, err := service.Checkout(ctx, userID, &paymentsvc.CheckoutRequest{
					CourseID: ptrInt64(101),
					Method:   payment.MethodFree,
				})
				Expect(err).To(HaveOccurred())
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidAmount))
			})
		})

		Context("with a free target", func() {
			BeforeEach(func() {
				cat.price = 0
			})

			It("should enroll directly", func() {
				resp, err := service.Checkout(ctx, userID, &paymentsvc.CheckoutRequest{
					CourseID: ptrInt64(101),
					Method:   payment.MethodFree,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.Status).To(Equal(payment.StatusCompleted))
				Expect(store.enrolled(userID, 101)).To(BeTrue())
			})

			It("should reject a repeat free checkout as a conflict", func() {
				_, err := service.Checkout(ctx, userID, &paymentsvc.CheckoutRequest{
					CourseID: ptrInt64(101),
					Method:   payment.MethodFree,
				})
				Expect(err).NotTo(HaveOccurred())

				_, err = service.Checkout(ctx, userID, &paymentsvc.CheckoutRequest{
					CourseID: ptrInt64(101),
					Method:   payment.MethodFree,
				})
				Expect(err).To(HaveOccurred())
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(internal.ErrCodeAlreadyEnrolled))
				Expect(bus.named(events.PaymentCompletedEvent)).To(HaveLen(1))
			})

			It("should still settle a free bundle with some courses already held", func() {
				store.bundles[7] = []int64{101, 102, 103}
				_, err := store.GrantCourse(ctx, userID, 101)
				Expect(err).NotTo(HaveOccurred())

				resp, err := service.Checkout(ctx, userID, &paymentsvc.CheckoutRequest{
					BundleID: ptrInt64(7),
					Method:   payment.MethodFree,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.Status).To(Equal(payment.StatusCompleted))
				Expect(store.enrolled(userID, 102)).To(BeTrue())
				Expect(store.enrolled(userID, 103)).To(BeTrue())
				Expect(bus.named(events.EnrollmentCreatedEvent)).To(HaveLen(2))
			})
		})
	})

	Describe("TransitionTo", func() {
		var paymentID string

		BeforeEach(func() {
			paymentID = "pay-1"
			Expect(store.CreatePayment(ctx, &payment.Payment{
				ID:       paymentID,
				UserID:   userID,
				CourseID: ptrInt64(101),
				Amount:   1000,
				Currency: "THB",
				Method:   payment.MethodCard,
				Status:   payment.StatusPending,
			})).To(Succeed())
		})

		It("should grant access exactly once across duplicate completions", func() {
			for i := 0; i < 5; i++ {
				err := service.TransitionTo(ctx, paymentID, payment.StatusCompleted, paymentsvc.Evidence{Source: "gateway_webhook"})
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(store.enrolled(userID, 101)).To(BeTrue())
			Expect(bus.named(events.PaymentCompletedEvent)).To(HaveLen(1))
			Expect(bus.named(events.EnrollmentCreatedEvent)).To(HaveLen(1))
		})

		It("should settle exactly once under concurrent completions", func() {
			const deliveries = 8

			var wg sync.WaitGroup
			errs := make([]error, deliveries)
			for i := 0; i < deliveries; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = service.TransitionTo(ctx, paymentID, payment.StatusCompleted, paymentsvc.Evidence{Source: "gateway_webhook"})
				}(i)
			}
			wg.Wait()

			for i := 0; i < deliveries; i++ {
				Expect(errs[i]).NotTo(HaveOccurred())
			}
			Expect(store.enrolled(userID, 101)).To(BeTrue())
			Expect(bus.named(events.PaymentCompletedEvent)).To(HaveLen(1))
			Expect(bus.named(events.EnrollmentCreatedEvent)).To(HaveLen(1))
		})

		It("should grant every course of a bundle", func() {
			Expect(store.CreatePayment(ctx, &payment.Payment{
				ID:       "pay-bundle",
				UserID:   userID,
				BundleID: ptrInt64(7),
				Amount:   2500,
				Currency: "THB",
				Method:   payment.MethodCard,
				Status:   payment.StatusPending,
			})).To(Succeed())
			store.bundles[7] = []int64{101, 102, 103}

			err := service.TransitionTo(ctx, "pay-bundle", payment.StatusCompleted, paymentsvc.Evidence{Source: "gateway_webhook"})
			Expect(err).NotTo(HaveOccurred())

			Expect(store.enrolled(userID, 101)).To(BeTrue())
			Expect(store.enrolled(userID, 102)).To(BeTrue())
			Expect(store.enrolled(userID, 103)).To(BeTrue())
			Expect(bus.named(events.EnrollmentCreatedEvent)).To(HaveLen(3))
		})

		It("should redeem the coupon at settlement", func() {
			Expect(store.CreatePayment(ctx, &payment.Payment{
				ID:             "pay-coupon",
				UserID:         userID,
				CourseID:       ptrInt64(101),
				Amount:         900,
				Currency:       "THB",
				Method:         payment.MethodCard,
				Status:         payment.StatusPending,
				CouponCode:     ptrString("SAVE10"),
				DiscountAmount: 100,
			})).To(Succeed())

			Expect(service.TransitionTo(ctx, "pay-coupon", payment.StatusCompleted, paymentsvc.Evidence{Source: "gateway_webhook"})).To(Succeed())
			Expect(store.redeemCalls).To(Equal(1))
		})

		It("should record the failure reason", func() {
			err := service.TransitionTo(ctx, paymentID, payment.StatusFailed, paymentsvc.Evidence{
				Source: "gateway_webhook",
				Note:   "card declined",
			})
			Expect(err).NotTo(HaveOccurred())

			p, err := store.Get(ctx, paymentID)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Status).To(Equal(payment.StatusFailed))
			Expect(p.FailureReason).NotTo(BeNil())
			Expect(*p.FailureReason).To(Equal("card declined"))
			Expect(bus.named(events.PaymentFailedEvent)).To(HaveLen(1))
		})

		It("should ignore a stale failure after completion", func() {
			Expect(service.TransitionTo(ctx, paymentID, payment.StatusCompleted, paymentsvc.Evidence{Source: "gateway_webhook"})).To(Succeed())
			Expect(service.TransitionTo(ctx, paymentID, payment.StatusFailed, paymentsvc.Evidence{Source: "gateway_webhook"})).To(Succeed())

			p, err := store.Get(ctx, paymentID)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Status).To(Equal(payment.StatusCompleted))
			Expect(bus.named(events.PaymentFailedEvent)).To(BeEmpty())
		})

		It("should reject an invalid transition", func() {
			Expect(service.TransitionTo(ctx, paymentID, payment.StatusVerifying, paymentsvc.Evidence{Source: "slip_upload"})).To(Succeed())

			err := service.TransitionTo(ctx, paymentID, payment.StatusPending, paymentsvc.Evidence{Source: "admin"})
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidTransition))
		})

		Context("when a completed payment is refunded", func() {
			BeforeEach(func() {
				Expect(service.TransitionTo(ctx, paymentID, payment.StatusCompleted, paymentsvc.Evidence{Source: "gateway_webhook"})).To(Succeed())
			})

			It("should run refund reconciliation for the courses", func() {
				err := service.TransitionTo(ctx, paymentID, payment.StatusRefunded, paymentsvc.Evidence{Source: "gateway_webhook"})
				Expect(err).NotTo(HaveOccurred())

				Expect(revoker.calls).To(Equal(1))
				Expect(revoker.userID).To(Equal(userID))
				Expect(revoker.courseIDs).To(ConsistOf(int64(101)))
				Expect(revoker.paymentID).To(Equal(paymentID))
				Expect(bus.named(events.PaymentRefundedEvent)).To(HaveLen(1))
			})
		})
	})

	Describe("HandleGatewayEvent", func() {
		BeforeEach(func() {
			ref := "sess_abc"
			Expect(store.CreatePayment(ctx, &payment.Payment{
				ID:          "pay-1",
				UserID:      userID,
				CourseID:    ptrInt64(101),
				Amount:      1000,
				Currency:    "THB",
				Method:      payment.MethodCard,
				Status:      payment.StatusPending,
				ExternalRef: &ref,
			})).To(Succeed())
		})

		It("should complete on a success event", func() {
			err := service.HandleGatewayEvent(ctx, &paymentsvc.GatewayEvent{
				Type:      paymentsvc.GatewayEventSucceeded,
				PaymentID: "pay-1",
				Amount:    1000,
			})
			Expect(err).NotTo(HaveOccurred())

			p, _ := store.Get(ctx, "pay-1")
			Expect(p.Status).To(Equal(payment.StatusCompleted))
		})

		It("should resolve the payment by external ref", func() {
			err := service.HandleGatewayEvent(ctx, &paymentsvc.GatewayEvent{
				Type:        paymentsvc.GatewayEventSucceeded,
				ExternalRef: "sess_abc",
				Amount:      1000,
			})
			Expect(err).NotTo(HaveOccurred())

			p, _ := store.Get(ctx, "pay-1")
			Expect(p.Status).To(Equal(payment.StatusCompleted))
		})

		It("should fail the payment on an amount mismatch", func() {
			err := service.HandleGatewayEvent(ctx, &paymentsvc.GatewayEvent{
				Type:      paymentsvc.GatewayEventSucceeded,
				PaymentID: "pay-1",
				Amount:    1,
			})
			Expect(err).NotTo(HaveOccurred())

			p, _ := store.Get(ctx, "pay-1")
			Expect(p.Status).To(Equal(payment.StatusFailed))
			Expect(store.enrolled(userID, 101)).To(BeFalse())
		})

		It("should ignore unknown event types", func() {
			err := service.HandleGatewayEvent(ctx, &paymentsvc.GatewayEvent{
				Type:      "payment.disputed",
				PaymentID: "pay-1",
			})
			Expect(err).NotTo(HaveOccurred())

			p, _ := store.Get(ctx, "pay-1")
			Expect(p.Status).To(Equal(payment.StatusPending))
		})
	})

	Describe("SubmitSlip", func() {
		var slipPaymentID string

		BeforeEach(func() {
			slipPaymentID = "pay-slip"
			Expect(store.CreatePayment(ctx, &payment.Payment{
				ID:       slipPaymentID,
				UserID:   userID,
				CourseID: ptrInt64(101),
				Amount:   1000,
				Currency: "THB",
				Method:   payment.MethodBankSlip,
				Status:   payment.StatusPending,
			})).To(Succeed())
		})

		It("should complete when the slip matches", func() {
			slips.result = &slipverify.Result{Success: true, Amount: 1000, TransRef: "tx-9"}

			p, err := service.SubmitSlip(ctx, userID, slipPaymentID, "slip.jpg", strings.NewReader("image"))
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Status).To(Equal(payment.StatusCompleted))
			Expect(store.enrolled(userID, 101)).To(BeTrue())
			Expect(slips.gotAmount).To(Equal(1000.0))
		})

		It("should fail on an amount mismatch without granting access", func() {
			slips.result = &slipverify.Result{Success: true, Amount: 500, TransRef: "tx-9"}

			p, err := service.SubmitSlip(ctx, userID, slipPaymentID, "slip.jpg", strings.NewReader("image"))
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Status).To(Equal(payment.StatusFailed))
			Expect(p.FailureReason).NotTo(BeNil())
			Expect(store.enrolled(userID, 101)).To(BeFalse())
		})

		It("should map the duplicate slip verdict to a reason", func() {
			slips.result = &slipverify.Result{Success: false, Code: slipverify.CodeDuplicate}

			p, err := service.SubmitSlip(ctx, userID, slipPaymentID, "slip.jpg", strings.NewReader("image"))
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Status).To(Equal(payment.StatusFailed))
			Expect(*p.FailureReason).To(ContainSubstring("already used"))
		})

		It("should fail the payment when the verifier is down", func() {
			slips.err = errors.New("timeout")

			_, err := service.SubmitSlip(ctx, userID, slipPaymentID, "slip.jpg", strings.NewReader("image"))
			Expect(err).To(HaveOccurred())

			p, _ := store.Get(ctx, slipPaymentID)
			Expect(p.Status).To(Equal(payment.StatusFailed))
		})

		It("should allow resubmission after a failed attempt", func() {
			slips.result = &slipverify.Result{Success: false, Code: slipverify.CodeUnreadable}
			_, err := service.SubmitSlip(ctx, userID, slipPaymentID, "slip.jpg", strings.NewReader("image"))
			Expect(err).NotTo(HaveOccurred())

			slips.result = &slipverify.Result{Success: true, Amount: 1000, TransRef: "tx-10"}
			p, err := service.SubmitSlip(ctx, userID, slipPaymentID, "slip2.jpg", strings.NewReader("image"))
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Status).To(Equal(payment.StatusCompleted))
		})

		It("should refuse slips on card payments", func() {
			Expect(store.CreatePayment(ctx, &payment.Payment{
				ID:       "pay-card",
				UserID:   userID,
				CourseID: ptrInt64(101),
				Amount:   1000,
				Currency: "THB",
				Method:   payment.MethodCard,
				Status:   payment.StatusPending,
			})).To(Succeed())

			_, err := service.SubmitSlip(ctx, userID, "pay-card", "slip.jpg", strings.NewReader("image"))
			Expect(err).To(HaveOccurred())
		})

		It("should refuse slips from other users", func() {
			_, err := service.SubmitSlip(ctx, 999, slipPaymentID, "slip.jpg", strings.NewReader("image"))
			Expect(err).To(Equal(internal.ErrPaymentNotFound))
		})
	})

	Describe("FailStuckVerifying", func() {
		It("should fail payments stuck past the cutoff", func() {
			stale := time.Now().Add(-2 * time.Hour)
			Expect(store.CreatePayment(ctx, &payment.Payment{
				ID: "stuck-1", UserID: userID, CourseID: ptrInt64(101),
				Amount: 1000, Currency: "THB", Method: payment.MethodBankSlip,
				Status: payment.StatusVerifying, UpdatedAt: stale,
			})).To(Succeed())
			Expect(store.CreatePayment(ctx, &payment.Payment{
				ID: "fresh-1", UserID: userID, CourseID: ptrInt64(102),
				Amount: 1000, Currency: "THB", Method: payment.MethodBankSlip,
				Status: payment.StatusVerifying, UpdatedAt: time.Now(),
			})).To(Succeed())

			failed, err := service.FailStuckVerifying(ctx, 30*time.Minute, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(failed).To(Equal(1))

			p, _ := store.Get(ctx, "stuck-1")
			Expect(p.Status).To(Equal(payment.StatusFailed))
			p, _ = store.Get(ctx, "fresh-1")
			Expect(p.Status).To(Equal(payment.StatusVerifying))
		})
	})

	Describe("GetPayment", func() {
		It("should hide other users' payments", func() {
			Expect(store.CreatePayment(ctx, &payment.Payment{
				ID: "pay-1", UserID: userID, CourseID: ptrInt64(101),
				Amount: 1000, Currency: "THB", Method: payment.MethodCard,
				Status: payment.StatusPending,
			})).To(Succeed())

			_, err := service.GetPayment(ctx, 999, "pay-1")
			Expect(err).To(Equal(internal.ErrPaymentNotFound))
		})
	})
})
