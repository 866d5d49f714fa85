package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/orderflow/internal/domain/order"
)

// writeJSON encodes one value with jx and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := &jx.Encoder{}
	encode(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(message)
		e.ObjEnd()
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("state")
	e.Str(string(o.State))
	e.FieldStart("currency")
	e.Str(o.Currency)
	e.FieldStart("customer_id")
	e.Str(o.CustomerID)

	e.FieldStart("lines")
	e.ArrStart()
	for i := range o.Lines {
		encodeLine(e, &o.Lines[i])
	}
	e.ArrEnd()

	e.FieldStart("shipping_lines")
	e.ArrStart()
	for i := range o.ShippingLines {
		encodeShippingLine(e, &o.ShippingLines[i])
	}
	e.ArrEnd()

	e.FieldStart("coupon_codes")
	e.ArrStart()
	for _, c := range o.CouponCodes {
		e.Str(c)
	}
	e.ArrEnd()

	e.FieldStart("totals")
	e.ObjStart()
	e.FieldStart("subtotal")
	e.Int64(o.Totals.Subtotal)
	e.FieldStart("tax")
	e.Int64(o.Totals.Tax)
	e.FieldStart("shipping")
	e.Int64(o.Totals.Shipping)
	e.FieldStart("discount")
	e.Int64(o.Totals.Discount)
	e.FieldStart("grand_total")
	e.Int64(o.Totals.GrandTotal)
	e.ObjEnd()

	e.FieldStart("history")
	e.ArrStart()
	for i := range o.History {
		encodeHistory(e, &o.History[i])
	}
	e.ArrEnd()

	e.FieldStart("created_at")
	e.Str(o.CreatedAt.Format(timeLayout))
	e.FieldStart("updated_at")
	e.Str(o.UpdatedAt.Format(timeLayout))
	e.ObjEnd()
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

func encodeLine(e *jx.Encoder, l *order.Line) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(l.ID)
	e.FieldStart("variant_id")
	e.Str(l.VariantID)
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	e.FieldStart("unit_price")
	e.Int64(l.UnitPrice)
	e.FieldStart("unit_price_with_tax")
	e.Int64(l.UnitPriceWithTax)
	e.FieldStart("tax_rate")
	e.Int(l.TaxRate)
	if l.ShippingLineID != "" {
		e.FieldStart("shipping_line_id")
		e.Str(l.ShippingLineID)
	}
	e.ObjEnd()
}

func encodeShippingLine(e *jx.Encoder, sl *order.ShippingLine) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(sl.ID)
	e.FieldStart("method_id")
	e.Str(sl.MethodID)
	e.FieldStart("price")
	e.Int64(sl.Price)
	e.FieldStart("line_ids")
	e.ArrStart()
	for _, id := range sl.LineIDs {
		e.Str(id)
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeHistory(e *jx.Encoder, rec *order.ModificationRecord) {
	e.ObjStart()
	e.FieldStart("kind")
	e.Str(string(rec.Kind))
	if rec.LineID != "" {
		e.FieldStart("line_id")
		e.Str(rec.LineID)
	}
	if rec.Before != "" {
		e.FieldStart("before")
		e.Str(rec.Before)
	}
	if rec.After != "" {
		e.FieldStart("after")
		e.Str(rec.After)
	}
	e.FieldStart("actor")
	e.Str(rec.Actor)
	e.FieldStart("timestamp")
	e.Str(rec.Timestamp.Format(timeLayout))
	e.ObjEnd()
}
