package sqlcompile

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// QuoteIdentifier quotes an identifier for the adapter. BigQuery and Databricks use
// backticks, everything else standard double quotes. Embedded quote characters are doubled.
func QuoteIdentifier(adapter domain.AdapterType, name string) string {
	switch adapter {
	case domain.AdapterBigQuery, domain.AdapterDatabricks:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral wraps a string value in single quotes, escaping any
// embedded single-quote characters by doubling them (standard SQL).
func QuoteLiteral(adapter domain.AdapterType, value string) string {
	escaped := strings.ReplaceAll(value, "'", "''")
	if adapter == domain.AdapterBigQuery || adapter == domain.AdapterDatabricks {
		escaped = strings.ReplaceAll(escaped, `\`, `\\`)
	}
	return "'" + escaped + "'"
}

// literal renders a filter value as SQL. Values for date and timestamp fields are typed.
func literal(adapter domain.AdapterType, v any, fieldType domain.DimensionType) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case *big.Int:
		return x.String(), nil
	case time.Time:
		return typedLiteral(adapter, x.UTC().Format("2006-01-02 15:04:05"), fieldType), nil
	case string:
		return typedLiteral(adapter, x, fieldType), nil
	}
	return "", domain.ErrValidation("unsupported filter value %v (%T)", v, v)
}

func typedLiteral(adapter domain.AdapterType, s string, fieldType domain.DimensionType) string {
	switch fieldType {
	case domain.DimensionTypeDate:
		return fmt.Sprintf("DATE %s", QuoteLiteral(adapter, s))
	case domain.DimensionTypeTimestamp:
		return fmt.Sprintf("TIMESTAMP %s", QuoteLiteral(adapter, s))
	}
	return QuoteLiteral(adapter, s)
}
