package metrics

import (
	"fmt"
	"path"
	"reflect"
	"strings"
)

// metricTags are decoded from the struct tags of a metrics field:
//   - metric: the metric name; a field without it is scanned as a nested group of metrics
//   - group: appends a path element to the metric (e.g. root/path/group/{metric})
//   - description: the help text of the metric
//   - unit: seconds or bytes, used to pick histogram buckets
//   - labels:label,...: the label names of the metric vector
type metricTags struct {
	name        string
	group       string
	description string
	unit        string
	labels      []string
}

func decodeTags(field reflect.StructField) metricTags {
	tags := metricTags{
		name:        field.Tag.Get("metric"),
		group:       field.Tag.Get("group"),
		description: field.Tag.Get("description"),
		unit:        field.Tag.Get("unit"),
	}
	for _, label := range strings.Split(field.Tag.Get("labels"), ",") {
		if label = strings.TrimSpace(label); label != "" {
			tags.labels = append(tags.labels, label)
		}
	}
	return tags
}

// metricAdder allocates the collector for a field, or returns nil to leave the field alone
type metricAdder func(field interface{}, group string, tags metricTags) interface{}

func equalType(a, b interface{}) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}

// scanStruct walks a pointer to a metrics struct and allocates all its collectors
func scanStruct(parent string, adder metricAdder, m interface{}) {
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("scanStruct requires a pointer to a struct, got: %T", m))
	}
	scanValue(parent, adder, rv.Elem())
}

func scanValue(parent string, adder metricAdder, container reflect.Value) {
	typ := container.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := container.Field(i)
		if !field.CanSet() {
			continue
		}
		tags := decodeTags(typ.Field(i))
		group := path.Join(parent, tags.group)

		switch {
		case tags.name != "" && field.Kind() == reflect.Ptr:
			if collector := adder(field.Interface(), group, tags); collector != nil {
				field.Set(reflect.ValueOf(collector))
			}
		case tags.name != "":
			// only pointers to collectors are allocated
		case field.Kind() == reflect.Struct:
			scanValue(group, adder, field)
		case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
			if field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
			scanValue(group, adder, field.Elem())
		}
	}
}
