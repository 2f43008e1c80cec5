package payments

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	config "github.com/mwangi-dev/kidsclass_backend/configs"
	"github.com/shopspring/decimal"
)

// ErrCardDeclined is terminal: the provider rejected the card itself,
// so retrying the same request cannot succeed.
var ErrCardDeclined = errors.New("card declined by payment provider")

// TransientError marks network/timeout/5xx failures that are safe to
// retry with backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient provider error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

const (
	maxProviderAttempts = 3
	requestTimeout      = 10 * time.Second
)

type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Charge struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Subscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type SavedMethod struct {
	ID    string `json:"id"`
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

type providerError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doRequest(method, path string, payload interface{}, out interface{}) error {
	apiBase := config.Config("PROVIDER_API_BASE_URL")
	secretKey := config.Config("PROVIDER_SECRET_KEY")

	var reqBody io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal provider payload: %v", err)
		}
		reqBody = bytes.NewBuffer(body)
	}

	req, err := http.NewRequest(method, apiBase+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create provider request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+secretKey)

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientError{Err: err}
	}

	if resp.StatusCode >= 500 {
		return &TransientError{Err: fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(respBody))}
	}

	if resp.StatusCode >= 400 {
		var perr providerError
		if json.Unmarshal(respBody, &perr) == nil && perr.Error.Code == "card_declined" {
			return ErrCardDeclined
		}
		return fmt.Errorf("provider request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal provider response: %v", err)
		}
	}
	return nil
}

// withRetry runs fn up to maxProviderAttempts times, backing off
// 1s/2s/4s between attempts. Only transient failures are retried;
// declined cards and other terminal errors surface immediately.
func withRetry(operation string, fn func() error) error {
	var err error
	delay := time.Second
	for attempt := 1; attempt <= maxProviderAttempts; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
		log.Printf("⚠️ Provider call %s failed (attempt %d/%d): %v", operation, attempt, maxProviderAttempts, err)
		if attempt < maxProviderAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

func EnsureCustomer(email, fullName string, existingID *string) (*Customer, error) {
	if existingID != nil && *existingID != "" {
		return &Customer{ID: *existingID, Email: email}, nil
	}
	var customer Customer
	err := withRetry("EnsureCustomer", func() error {
		return doRequest("POST", "/v1/customers", map[string]string{
			"email": email,
			"name":  fullName,
		}, &customer)
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func CreateCheckoutSession(customerID, orderRef string, amount decimal.Decimal, currency string) (*CheckoutSession, error) {
	var session CheckoutSession
	err := withRetry("CreateCheckoutSession", func() error {
		return doRequest("POST", "/v1/checkout/sessions", map[string]interface{}{
			"customer":  customerID,
			"reference": orderRef,
			"amount":    amount.StringFixed(2),
			"currency":  currency,
		}, &session)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func ChargeSavedMethod(customerID, methodID, reference string, amount decimal.Decimal, currency string) (*Charge, error) {
	var charge Charge
	err := withRetry("ChargeSavedMethod", func() error {
		return doRequest("POST", "/v1/charges", map[string]interface{}{
			"customer":       customerID,
			"payment_method": methodID,
			"reference":      reference,
			"amount":         amount.StringFixed(2),
			"currency":       currency,
			"off_session":    true,
		}, &charge)
	})
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

func CreateSubscription(customerID, methodID, reference string, amount decimal.Decimal, currency, interval string, count int) (*Subscription, error) {
	var sub Subscription
	err := withRetry("CreateSubscription", func() error {
		return doRequest("POST", "/v1/subscriptions", map[string]interface{}{
			"customer":       customerID,
			"payment_method": methodID,
			"reference":      reference,
			"amount":         amount.StringFixed(2),
			"currency":       currency,
			"interval":       interval,
			"cycle_count":    count,
		}, &sub)
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func CancelSubscription(subscriptionID string) error {
	return withRetry("CancelSubscription", func() error {
		return doRequest("DELETE", "/v1/subscriptions/"+subscriptionID, nil, nil)
	})
}

func CreateRefund(chargeRef string, amount decimal.Decimal) (*Refund, error) {
	var refund Refund
	err := withRetry("CreateRefund", func() error {
		return doRequest("POST", "/v1/refunds", map[string]interface{}{
			"charge": chargeRef,
			"amount": amount.StringFixed(2),
		}, &refund)
	})
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func ListPaymentMethods(customerID string) ([]SavedMethod, error) {
	var result struct {
		Data []SavedMethod `json:"data"`
	}
	err := withRetry("ListPaymentMethods", func() error {
		return doRequest("GET", "/v1/customers/"+customerID+"/payment_methods", nil, &result)
	})
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}

func DetachPaymentMethod(methodID string) error {
	return withRetry("DetachPaymentMethod", func() error {
		return doRequest("POST", "/v1/payment_methods/"+methodID+"/detach", nil, nil)
	})
}
