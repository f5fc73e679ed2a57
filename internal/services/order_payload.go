package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

// Canonical order fields and the keys each may arrive under, in priority
// order. Keys are matched after lower-casing and folding spaces and hyphens
// to underscores; dotted keys walk nested objects and arrays.
var orderFieldAliases = map[string][]string{
	"order_number":       {"order_number", "number", "order_no"},
	"woo_order_id":       {"woo_order_id", "id", "order_id"},
	"status":             {"status", "order_status"},
	"total":              {"total", "order_total", "grand_total"},
	"subtotal":           {"subtotal", "order_subtotal"},
	"shipping_total":     {"shipping_total", "shipping", "shipping_charged", "order_shipping"},
	"discount_total":     {"discount_total", "coupon_discount", "discount", "cart_discount"},
	"coupon_code":        {"coupon_code", "coupon_lines.0.code", "coupon", "coupons", "coupon_lines_code"},
	"currency":           {"currency"},
	"customer_note":      {"customer_note", "note", "notes"},
	"customer_name":      {"customer_name", "billing_name", "billing.name"},
	"billing_first_name": {"billing.first_name", "billing_first_name", "first_name", "customer_first_name"},
	"billing_last_name":  {"billing.last_name", "billing_last_name", "last_name", "customer_last_name"},
	"billing_email":      {"billing.email", "billing_email", "email", "customer_email"},
	"date_created":       {"date_created", "date_created_gmt", "order_date", "created_at", "date"},
	"line_items":         {"line_items", "items", "products"},
}

// Parallel comma-separated line fields, as sent by flattening automations.
var parallelLineAliases = map[string][]string{
	"id":         {"line_items_id", "line_item_ids", "line_items.id"},
	"product_id": {"line_items_product_id", "line_item_product_ids", "product_ids", "line_items.product_id"},
	"name":       {"line_items_name", "line_item_names", "item_names", "product_names", "line_items.name"},
	"sku":        {"line_items_sku", "line_item_skus", "skus", "line_items.sku"},
	"quantity":   {"line_items_quantity", "line_item_quantities", "quantities", "line_items.quantity"},
	"price":      {"line_items_price", "line_item_prices", "prices", "line_items.price"},
	"total":      {"line_items_total", "line_item_totals", "line_items.total"},
	"subtotal":   {"line_items_subtotal", "line_item_subtotals", "line_items.subtotal"},
}

var lineFieldAliases = map[string][]string{
	"id":         {"id", "line_item_id", "item_id"},
	"product_id": {"product_id", "productid", "variation_id"},
	"name":       {"name", "product_name", "title"},
	"sku":        {"sku"},
	"quantity":   {"quantity", "qty"},
	"price":      {"price", "unit_price"},
	"total":      {"total", "line_total"},
	"subtotal":   {"subtotal", "line_subtotal"},
}

// Placeholder line ids start here when the source omits them.
const syntheticLineIDBase = 1_000_000

var (
	orderNumberPattern = regexp.MustCompile(`(?i)^(?:order\s*)?#?\s*(\d+)$`)
	digitsPattern      = regexp.MustCompile(`\d+`)
)

var orderDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// OrderPayload is a loosely structured order document.
type OrderPayload map[string]interface{}

// NewOrderPayloadFromForm turns flattened form fields into a payload.
func NewOrderPayloadFromForm(form map[string][]string) OrderPayload {
	p := make(OrderPayload, len(form))
	for k, v := range form {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	return p
}

// RawLine is a line item before cost resolution.
type RawLine struct {
	ID        int64
	ProductID int64
	Name      string
	SKU       string
	Quantity  int
	Price     decimal.Decimal
	Total     decimal.Decimal
	Subtotal  decimal.Decimal
}

// UnitPrice is price when positive, else total or subtotal divided by quantity.
func (l RawLine) UnitPrice() decimal.Decimal {
	if l.Price.IsPositive() {
		return l.Price
	}
	qty := decimal.NewFromInt(int64(l.Quantity))
	if l.Total.IsPositive() {
		return l.Total.Div(qty).Round(4)
	}
	if l.Subtotal.IsPositive() {
		return l.Subtotal.Div(qty).Round(4)
	}
	return decimal.Zero
}

// NormalizedOrder is the canonical reading of an OrderPayload.
type NormalizedOrder struct {
	OrderNumber    string
	WooOrderID     int64
	Status         string
	Total          decimal.Decimal
	HasTotal       bool
	Subtotal       decimal.Decimal
	HasSubtotal    bool
	ShippingTotal  decimal.Decimal
	CouponDiscount decimal.Decimal
	CouponCode     string
	Currency       string
	Notes          string
	CustomerName   string
	CustomerEmail  string
	OrderDate      *time.Time
	Lines          []RawLine
}

// Normalize extracts the canonical order. It fails only when neither an
// order number nor a platform id can be found.
func (p OrderPayload) Normalize() (*NormalizedOrder, error) {
	n := &NormalizedOrder{}
	idx := indexKeys(p)

	if id, ok := lookupDecimal(idx, orderFieldAliases["woo_order_id"]); ok && id.IntPart() > 0 {
		n.WooOrderID = id.IntPart()
	}
	rawNumber, _ := lookupString(idx, orderFieldAliases["order_number"])
	if rawNumber == "" && n.WooOrderID > 0 {
		rawNumber = strconv.FormatInt(n.WooOrderID, 10)
	}
	if rawNumber == "" {
		return nil, fmt.Errorf("%w: order_number or id is required", ErrValidation)
	}
	n.OrderNumber = NormalizeOrderNumber(rawNumber)
	if n.WooOrderID == 0 {
		n.WooOrderID = PlatformIDFromOrderNumber(n.OrderNumber)
	}
	if n.WooOrderID == 0 {
		return nil, fmt.Errorf("%w: cannot derive a platform order id from %q", ErrValidation, rawNumber)
	}

	status, _ := lookupString(idx, orderFieldAliases["status"])
	n.Status = normalizeStatus(status)

	n.Total, n.HasTotal = lookupDecimal(idx, orderFieldAliases["total"])
	n.Subtotal, n.HasSubtotal = lookupDecimal(idx, orderFieldAliases["subtotal"])
	n.ShippingTotal, _ = lookupDecimal(idx, orderFieldAliases["shipping_total"])
	n.CouponDiscount, _ = lookupDecimal(idx, orderFieldAliases["discount_total"])
	n.CouponDiscount = n.CouponDiscount.Abs()
	n.CouponCode, _ = lookupString(idx, orderFieldAliases["coupon_code"])
	n.Currency, _ = lookupString(idx, orderFieldAliases["currency"])
	n.Notes, _ = lookupString(idx, orderFieldAliases["customer_note"])
	n.CustomerEmail, _ = lookupString(idx, orderFieldAliases["billing_email"])

	n.CustomerName, _ = lookupString(idx, orderFieldAliases["customer_name"])
	if n.CustomerName == "" {
		first, _ := lookupString(idx, orderFieldAliases["billing_first_name"])
		last, _ := lookupString(idx, orderFieldAliases["billing_last_name"])
		n.CustomerName = strings.TrimSpace(first + " " + last)
	}

	if raw, ok := lookupString(idx, orderFieldAliases["date_created"]); ok {
		n.OrderDate = parseOrderDate(raw)
	}

	n.Lines = extractLines(idx)
	return n, nil
}

// NormalizeOrderNumber maps "2654", "#2654" and "order #2654" to "Order #2654".
// Anything else is kept trimmed.
func NormalizeOrderNumber(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := orderNumberPattern.FindStringSubmatch(raw); m != nil {
		return "Order #" + m[1]
	}
	return raw
}

// PlatformIDFromOrderNumber returns the last run of digits in orderNumber, or 0.
func PlatformIDFromOrderNumber(orderNumber string) int64 {
	runs := digitsPattern.FindAllString(orderNumber, -1)
	if len(runs) == 0 {
		return 0
	}
	id, err := strconv.ParseInt(runs[len(runs)-1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func normalizeStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "wc-")
	if s == "" {
		return models.OrderStatusProcessing
	}
	return s
}

func parseOrderDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// keyIndex maps folded keys to values for one object level.
type keyIndex map[string]interface{}

func foldKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(k)
}

func indexKeys(m map[string]interface{}) keyIndex {
	idx := make(keyIndex, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// first spelling wins on fold collisions, deterministically
	sort.Strings(keys)
	for _, k := range keys {
		f := foldKey(k)
		if _, taken := idx[f]; !taken {
			idx[f] = m[k]
		}
	}
	return idx
}

// lookupAlias returns the first present, non-empty value among aliases.
func lookupAlias(idx keyIndex, aliases []string) (interface{}, bool) {
	for _, alias := range aliases {
		if v, ok := idx.path(alias); ok && !isBlank(v) {
			return v, true
		}
	}
	return nil, false
}

func (idx keyIndex) path(alias string) (interface{}, bool) {
	if v, ok := idx[foldKey(alias)]; ok {
		return v, true
	}
	if !strings.Contains(alias, ".") {
		return nil, false
	}
	parts := strings.Split(alias, ".")
	cur, ok := idx[foldKey(parts[0])]
	if !ok {
		return nil, false
	}
	for _, part := range parts[1:] {
		switch node := cur.(type) {
		case map[string]interface{}:
			cur, ok = indexKeys(node)[foldKey(part)]
			if !ok {
				return nil, false
			}
		case []interface{}:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func isBlank(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// lookupString and lookupDecimal skip aliases whose value does not convert,
// so a nested "shipping" address never shadows a flat shipping total.
func lookupString(idx keyIndex, aliases []string) (string, bool) {
	for _, alias := range aliases {
		if v, ok := idx.path(alias); ok {
			if s := toString(v); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func lookupDecimal(idx keyIndex, aliases []string) (decimal.Decimal, bool) {
	for _, alias := range aliases {
		if v, ok := idx.path(alias); ok && !isBlank(v) {
			if d, ok := toDecimal(v); ok {
				return d, true
			}
		}
	}
	return decimal.Zero, false
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		return utils.ParseLooseAmount(t)
	}
	return decimal.Zero, false
}

// extractLines reads line items from an array, a single object, a JSON
// string, or parallel comma-separated fields. Malformed input gives no lines.
func extractLines(idx keyIndex) []RawLine {
	var objects []map[string]interface{}
	if v, ok := lookupAlias(idx, orderFieldAliases["line_items"]); ok {
		objects = lineObjects(v)
	}
	var lines []RawLine
	if len(objects) > 0 {
		for _, obj := range objects {
			lines = append(lines, lineFromObject(indexKeys(obj)))
		}
	} else {
		lines = parallelLines(idx)
	}
	return assignLineIDs(lines)
}

func lineObjects(v interface{}) []map[string]interface{} {
	switch t := v.(type) {
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(t))
		for _, item := range t {
			if obj, ok := item.(map[string]interface{}); ok {
				out = append(out, obj)
			}
		}
		return out
	case map[string]interface{}:
		return objectOrKeyedObjects(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" || (s[0] != '[' && s[0] != '{') {
			return nil
		}
		dec := json.NewDecoder(bytes.NewReader([]byte(s)))
		dec.UseNumber()
		var decoded interface{}
		if err := dec.Decode(&decoded); err != nil {
			utils.LogDebug("Ignoring malformed line_items string", map[string]interface{}{"error": err.Error()})
			return nil
		}
		return lineObjects(decoded)
	}
	return nil
}

// objectOrKeyedObjects treats {"0": {...}, "1": {...}} as a list and any
// other object as a single line.
func objectOrKeyedObjects(m map[string]interface{}) []map[string]interface{} {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if _, ok := v.(map[string]interface{}); !ok {
			return []map[string]interface{}{m}
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	out := make([]map[string]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k].(map[string]interface{}))
	}
	return out
}

func lineFromObject(idx keyIndex) RawLine {
	var l RawLine
	if id, ok := lookupDecimal(idx, lineFieldAliases["id"]); ok {
		l.ID = id.IntPart()
	}
	if id, ok := lookupDecimal(idx, lineFieldAliases["product_id"]); ok {
		l.ProductID = id.IntPart()
	}
	l.Name, _ = lookupString(idx, lineFieldAliases["name"])
	l.SKU, _ = lookupString(idx, lineFieldAliases["sku"])
	if q, ok := lookupDecimal(idx, lineFieldAliases["quantity"]); ok {
		l.Quantity = int(q.IntPart())
	}
	l.Price, _ = lookupDecimal(idx, lineFieldAliases["price"])
	l.Total, _ = lookupDecimal(idx, lineFieldAliases["total"])
	l.Subtotal, _ = lookupDecimal(idx, lineFieldAliases["subtotal"])
	if l.Quantity <= 0 {
		l.Quantity = 1
	}
	return l
}

func parallelLines(idx keyIndex) []RawLine {
	columns := map[string][]string{}
	width := 0
	for field, aliases := range parallelLineAliases {
		raw, ok := lookupString(idx, aliases)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		columns[field] = parts
		if field == "name" || field == "product_id" {
			if len(parts) > width {
				width = len(parts)
			}
		}
	}
	if width == 0 {
		return nil
	}

	at := func(field string, i int) string {
		col := columns[field]
		if i < len(col) {
			return col[i]
		}
		return ""
	}
	lines := make([]RawLine, 0, width)
	for i := 0; i < width; i++ {
		obj := map[string]interface{}{}
		for field := range parallelLineAliases {
			if v := at(field, i); v != "" {
				obj[field] = v
			}
		}
		lines = append(lines, lineFromObject(indexKeys(obj)))
	}
	return lines
}

// assignLineIDs keeps a supplied id when it is unused within the order and
// otherwise synthesizes syntheticLineIDBase+position.
func assignLineIDs(lines []RawLine) []RawLine {
	used := make(map[int64]bool, len(lines))
	for i := range lines {
		id := lines[i].ID
		if id <= 0 || used[id] {
			id = syntheticLineIDBase + int64(i)
			for used[id] {
				id++
			}
		}
		lines[i].ID = id
		used[id] = true
	}
	return lines
}
