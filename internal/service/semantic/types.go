package semantic

import (
	"strings"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// warehouse type names by dimension type, upper-cased with parameters stripped.
var warehouseTypes = map[string]domain.DimensionType{
	// numeric
	"INT": domain.DimensionTypeNumber, "INTEGER": domain.DimensionTypeNumber,
	"INT2": domain.DimensionTypeNumber, "INT4": domain.DimensionTypeNumber, "INT8": domain.DimensionTypeNumber,
	"INT64": domain.DimensionTypeNumber, "SMALLINT": domain.DimensionTypeNumber,
	"TINYINT": domain.DimensionTypeNumber, "BYTEINT": domain.DimensionTypeNumber,
	"BIGINT": domain.DimensionTypeNumber, "HUGEINT": domain.DimensionTypeNumber,
	"UBIGINT": domain.DimensionTypeNumber, "UINTEGER": domain.DimensionTypeNumber,
	"USMALLINT": domain.DimensionTypeNumber, "UTINYINT": domain.DimensionTypeNumber,
	"FLOAT": domain.DimensionTypeNumber, "FLOAT4": domain.DimensionTypeNumber,
	"FLOAT8": domain.DimensionTypeNumber, "FLOAT64": domain.DimensionTypeNumber,
	"DOUBLE": domain.DimensionTypeNumber, "REAL": domain.DimensionTypeNumber,
	"DECIMAL": domain.DimensionTypeNumber, "NUMERIC": domain.DimensionTypeNumber,
	"BIGNUMERIC": domain.DimensionTypeNumber, "BIGDECIMAL": domain.DimensionTypeNumber,
	"NUMBER": domain.DimensionTypeNumber, "FIXED": domain.DimensionTypeNumber,
	"LONG": domain.DimensionTypeNumber, "SHORT": domain.DimensionTypeNumber, "BYTE": domain.DimensionTypeNumber,
	// time
	"DATE": domain.DimensionTypeDate,
	"TIMESTAMP": domain.DimensionTypeTimestamp, "DATETIME": domain.DimensionTypeTimestamp,
	"TIMESTAMPTZ": domain.DimensionTypeTimestamp, "TIMESTAMP_NTZ": domain.DimensionTypeTimestamp,
	"TIMESTAMP_LTZ": domain.DimensionTypeTimestamp, "TIMESTAMP_TZ": domain.DimensionTypeTimestamp,
	"TIMESTAMP_S": domain.DimensionTypeTimestamp, "TIMESTAMP_MS": domain.DimensionTypeTimestamp,
	"TIMESTAMP_NS": domain.DimensionTypeTimestamp,
	// boolean
	"BOOL": domain.DimensionTypeBoolean, "BOOLEAN": domain.DimensionTypeBoolean,
}

// NormalizeWarehouseType maps a native warehouse type to a dimension type.
// Parameters such as NUMBER(38,0) and qualifiers such as "WITH TIME ZONE" are ignored;
// unknown or empty types fall back to string.
func NormalizeWarehouseType(native string) domain.DimensionType {
	t := strings.ToUpper(strings.TrimSpace(native))
	if i := strings.IndexAny(t, "(<"); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if dt, ok := warehouseTypes[t]; ok {
		return dt
	}
	if first, _, ok := strings.Cut(t, " "); ok {
		if dt, ok := warehouseTypes[first]; ok {
			return dt
		}
	}
	return domain.DimensionTypeString
}
