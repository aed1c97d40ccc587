package notionsync

import (
	"github.com/dvloznov/horizon/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the ledger database.
const (
	propName          = "Name"
	propTransactionID = "Transaction ID"
	propAccount       = "Account"
	propDate          = "Date"
	propAmount        = "Amount"
	propType          = "Type"
	propCategory      = "Category"
	propChannel       = "Payment Channel"
	propPending       = "Pending"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

// TransactionToNotionProperties converts a ledger entry, as seen from
// accountID, to the properties of one page in the ledger database.
func TransactionToNotionProperties(tx domain.Transaction, accountID string) notionapi.Properties {
	date := notionapi.Date(tx.Date)

	props := notionapi.Properties{
		propName: notionapi.TitleProperty{
			Title: richText(tx.Name),
		},
		propTransactionID: notionapi.RichTextProperty{
			RichText: richText(tx.ID),
		},
		propAccount: notionapi.RichTextProperty{
			RichText: richText(accountID),
		},
		propDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: &date,
			},
		},
		propAmount: notionapi.NumberProperty{
			Number: tx.Amount.InexactFloat64(),
		},
		propPending: notionapi.CheckboxProperty{
			Checkbox: tx.Pending,
		},
	}

	if tx.Type != "" {
		props[propType] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(tx.Type),
			},
		}
	}

	// Notion rejects select options with an empty name
	if tx.Category != "" {
		props[propCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Category,
			},
		}
	}

	if tx.PaymentChannel != "" {
		props[propChannel] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.PaymentChannel,
			},
		}
	}

	return props
}

// PendingUpdateProperties is the patch applied when an entry's pending flag changed.
func PendingUpdateProperties(pending bool) notionapi.Properties {
	return notionapi.Properties{
		propPending: notionapi.CheckboxProperty{
			Checkbox: pending,
		},
	}
}

func extractTransactionID(page notionapi.Page) string {
	if prop, ok := page.Properties[propTransactionID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(rt.RichText) > 0 {
				return rt.RichText[0].PlainText
			}
		}
	}
	return ""
}

func extractPending(page notionapi.Page) bool {
	if prop, ok := page.Properties[propPending]; ok {
		if cb, ok := prop.(*notionapi.CheckboxProperty); ok {
			return cb.Checkbox
		}
	}
	return false
}
