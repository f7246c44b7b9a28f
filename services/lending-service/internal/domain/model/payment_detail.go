package model

import (
	"errors"

	"github.com/google/uuid"
)

// PaymentDetail describes how a repayment reached the bank (channel, reference numbers).
// A transaction links to it by id.
type PaymentDetail struct {
	ID            string
	TenantID      string
	PaymentType   string
	AccountNumber string
	CheckNumber   string
	ReceiptNumber string
	RoutingCode   string
}

// NewPaymentDetail assigns an id to a payment detail.
func NewPaymentDetail(tenantID, paymentType, accountNumber, checkNumber, receiptNumber, routingCode string) (PaymentDetail, error) {
	if tenantID == "" {
		return PaymentDetail{}, errors.New("tenant ID is required")
	}
	if paymentType == "" {
		return PaymentDetail{}, errors.New("payment type is required")
	}
	return PaymentDetail{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		PaymentType:   paymentType,
		AccountNumber: accountNumber,
		CheckNumber:   checkNumber,
		ReceiptNumber: receiptNumber,
		RoutingCode:   routingCode,
	}, nil
}
