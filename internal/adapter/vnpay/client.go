package vnpay

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uit-go/ridehail/internal/domain/types"
	"github.com/uit-go/ridehail/internal/service/payment"
	"github.com/uit-go/ridehail/pkg/signature"
	"github.com/uit-go/ridehail/pkg/uuid"
)

const (
	version     = "2.1.0"
	commandPay  = "pay"
	currency    = "VND"
	locale      = "vn"
	successCode = "00"

	// VNPay carries amounts multiplied by 100 to avoid decimals.
	amountScale = 100
)

// Client builds VNPay payment URLs and verifies the signed callbacks the
// gateway sends back.
type Client struct {
	payURL     string
	tmnCode    string
	hashSecret string
	returnURL  string

	now func() time.Time
}

func New(payURL, tmnCode, hashSecret, returnURL string) *Client {
	return &Client{
		payURL:     payURL,
		tmnCode:    tmnCode,
		hashSecret: hashSecret,
		returnURL:  returnURL,
		now:        time.Now,
	}
}

// BuildPayURL returns the redirect URL the passenger opens to pay.
func (c *Client) BuildPayURL(_ context.Context, txnID uuid.UUID, amount float64, orderInfo string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("vnpay: non-positive amount %.2f", amount)
	}

	params := url.Values{}
	params.Set("vnp_Version", version)
	params.Set("vnp_Command", commandPay)
	params.Set("vnp_TmnCode", c.tmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(int64(amount*amountScale), 10))
	params.Set("vnp_CurrCode", currency)
	params.Set("vnp_TxnRef", txnID.String())
	params.Set("vnp_OrderInfo", orderInfo)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", locale)
	params.Set("vnp_ReturnUrl", c.returnURL)
	params.Set("vnp_CreateDate", c.now().Format("20060102150405"))

	query := sortedEncode(params)
	hash := signature.Sign(query, c.hashSecret)

	return fmt.Sprintf("%s?%s&vnp_SecureHash=%s", c.payURL, query, hash), nil
}

// VerifyCallback checks the callback signature and decodes the payment
// result. A bad or missing signature fails with ErrSignatureInvalid.
func (c *Client) VerifyCallback(params url.Values) (payment.CallbackResult, error) {
	received := params.Get("vnp_SecureHash")
	if received == "" {
		return payment.CallbackResult{}, types.ErrSignatureInvalid
	}

	signed := url.Values{}
	for key, values := range params {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		for _, v := range values {
			signed.Add(key, v)
		}
	}

	if !signature.Verify(sortedEncode(signed), received, c.hashSecret) {
		return payment.CallbackResult{}, types.ErrSignatureInvalid
	}

	rawAmount := params.Get("vnp_Amount")
	scaled, err := strconv.ParseFloat(rawAmount, 64)
	if err != nil {
		return payment.CallbackResult{}, fmt.Errorf("vnpay: callback amount %q: %w", rawAmount, err)
	}

	code := params.Get("vnp_ResponseCode")
	return payment.CallbackResult{
		TxnRef:       params.Get("vnp_TxnRef"),
		Amount:       scaled / amountScale,
		Success:      code == successCode,
		ResponseCode: code,
	}, nil
}

// sortedEncode renders the params sorted by key, the byte order VNPay
// signs over.
func sortedEncode(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		for _, v := range params[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
