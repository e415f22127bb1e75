package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"go.uber.org/zap"
)

// StripeOptions StripeGateway 参数
type StripeOptions struct {
	// PaymentMethod 非空时服务端绑定并在创建时确认；为空时只能由浏览器用 client secret 确认
	PaymentMethod string
	// APIURL 覆盖 Stripe API 地址
	APIURL     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// StripeGateway 基于 Stripe PaymentIntents 的网关
type StripeGateway struct {
	api           *client.API
	paymentMethod string
}

// NewStripeGateway 创建关闭网络重试的客户端
func NewStripeGateway(secretKey string, opts StripeOptions) *StripeGateway {
	cfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		HTTPClient:        opts.HTTPClient,
	}
	if opts.APIURL != "" {
		cfg.URL = stripe.String(opts.APIURL)
	}
	if opts.Logger != nil {
		cfg.LeveledLogger = opts.Logger.Sugar()
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
	return &StripeGateway{
		api:           client.New(secretKey, backends),
		paymentMethod: opts.PaymentMethod,
	}
}

// ClientConfirmationOnly 未配置服务端 PaymentMethod 时 intent 只能由浏览器确认
func (g *StripeGateway) ClientConfirmationOnly() bool {
	return g.paymentMethod == ""
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string) (IntentHandle, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(ToMinorUnits(amount)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if g.paymentMethod != "" {
		params.PaymentMethod = stripe.String(g.paymentMethod)
		params.Confirm = stripe.Bool(true)
		params.AutomaticPaymentMethods.AllowRedirects = stripe.String("never")
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	params.AddMetadata("idempotency_key", idempotencyKey)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return IntentHandle{}, classifyStripe("create intent", err)
	}
	return IntentHandle{
		ID:             pi.ID,
		ClientSecret:   pi.ClientSecret,
		Amount:         pi.Amount,
		Currency:       string(pi.Currency),
		IdempotencyKey: idempotencyKey,
	}, nil
}

func (g *StripeGateway) Confirm(ctx context.Context, handle IntentHandle) (Confirmation, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(handle.ID, params)
	if err != nil {
		cerr := classifyStripe("retrieve intent", err)
		var declined *DeclinedError
		if errors.As(cerr, &declined) {
			return Confirmation{IntentID: handle.ID, Status: StatusDeclined, Reason: declined.Reason}, nil
		}
		return Confirmation{}, cerr
	}

	c := Confirmation{IntentID: pi.ID, Amount: pi.Amount}
	if pi.Status == stripe.PaymentIntentStatusSucceeded {
		c.Status = StatusConfirmed
		return c, nil
	}
	c.Status = StatusDeclined
	c.Reason = fmt.Sprintf("payment not completed: %s", pi.Status)
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		c.Reason = pi.LastPaymentError.Msg
	}
	return c, nil
}

func classifyStripe(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
		return &DeclinedError{Reason: se.Msg, Code: string(se.Code)}
	}
	return gatewayError(op, err)
}
