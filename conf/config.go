package conf

/*
   Package conf wraps viper to provide configuration values to the rest of the
   claims engine. Values come from an env-format configuration file when one is
   present and fall back to the process environment otherwise.

   Assumptions:
   1. The configuration file is an env file.
   2. The configuration file, once made available to the application, stays
   immutable during the uptime of the application (exception is test).
*/

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// An instance of the viper struct containing the conf information. Only made
// accessible through public functions GetEnv, SetEnv, etc.
var envVars viper.Viper

// Tracks whether a config file was found and loaded.
const (
	configgood    uint8 = 0
	configbad     uint8 = 1
	noconfigfound uint8 = 2
)

var state uint8 = configgood

func setup(dir string) *viper.Viper {
	var v = viper.New()
	v.SetConfigName("local")
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	// Viper is lazy, do the read and parse of the config file
	if err := v.ReadInConfig(); err != nil {
		state = configbad
	}
	return v
}

func init() {
	// Possible config file locations: local and deployed respectively.
	var locations = []string{
		"/go/src/github.com/medassure/claims-engine/shared_files/decrypted",
		"/etc/claims-engine",
	}

	if success, loc := findEnv(locations); success {
		envVars = *setup(loc)
	} else {
		state = noconfigfound
	}
}

// findEnv walks the candidate locations in order and reports the first one
// containing a local.env file.
func findEnv(locations []string) (bool, string) {
	for _, loc := range locations {
		if _, err := os.Stat(loc + "/local.env"); err == nil {
			return true, loc
		}
	}
	return false, ""
}

// GetEnv retrieves the value stored in conf. If it does not exist, the empty
// string is returned.
func GetEnv(key string) string {
	if state == configgood {
		value := envVars.GetString(key)
		if value == "" {
			// Key not tracked by conf; fall back to the environment and copy
			// the value over to avoid additional OS calls.
			if v, ok := os.LookupEnv(key); ok {
				test := &testing.T{}
				_ = SetEnv(test, key, v)
				value = v
			}
		}
		return value
	}
	return os.Getenv(key)
}

// LookupEnv augments os.LookupEnv by checking the conf store first.
func LookupEnv(key string) (string, bool) {
	if state == configgood {
		if value := envVars.Get(key); value != nil && value != "" {
			return value.(string), true
		}
		if v, exist := os.LookupEnv(key); exist {
			test := &testing.T{}
			_ = SetEnv(test, key, v)
			return v, exist
		}
		return "", false
	}
	return os.LookupEnv(key)
}

// SetEnv adds key values into conf. This function should only be used either
// in this package itself or testing. The protect parameter is *testing.T to
// ensure developers knowingly use it in the appropriate scope.
func SetEnv(protect *testing.T, key string, value string) error {
	var err error
	if state == configgood {
		envVars.Set(key, value)
	} else {
		err = os.Setenv(key, value)
	}
	return err
}

// UnsetEnv "unsets" a variable. Like SetEnv, only for use by this package and
// tests.
func UnsetEnv(protect *testing.T, key string) error {
	if state == configgood {
		envVars.Set(key, "")
	}
	return os.Unsetenv(key)
}

// Checkout populates the provided data structure from conf. Two shapes are
// supported:
//
// A pointer to a struct: each settable string, int, or bool field is looked up
// by its `conf` tag (field name when untagged, `conf:"-"` skips), with
// `conf_default` applied when no value is present. Embedded structs are
// traversed.
//
// A slice of strings: each element is treated as a key and replaced in place
// with the value found ("" when absent).
func Checkout(v interface{}) error {
	switch val := reflect.ValueOf(v); val.Kind() {
	case reflect.Ptr:
		if val.Elem().Kind() != reflect.Struct {
			return &InvalidCheckoutError{Type: val.Type().String()}
		}
		return checkoutStruct(val.Elem())
	case reflect.Slice:
		slice, ok := v.([]string)
		if !ok {
			return &InvalidCheckoutError{Type: val.Type().String()}
		}
		for i, key := range slice {
			slice[i] = GetEnv(key)
		}
		return nil
	default:
		return &InvalidCheckoutError{Type: val.Type().String()}
	}
}

type InvalidCheckoutError struct {
	Type string
}

func (e *InvalidCheckoutError) Error() string {
	return "conf: Checkout requires a struct pointer or a string slice, got " + e.Type
}

func checkoutStruct(val reflect.Value) error {
	t := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field, fieldVal := t.Field(i), val.Field(i)
		if !fieldVal.CanSet() {
			continue
		}
		if fieldVal.Kind() == reflect.Struct {
			if err := checkoutStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("conf")
		if key == "-" {
			continue
		}
		if key == "" {
			key = field.Name
		}

		raw, found := LookupEnv(key)
		if !found || raw == "" {
			raw, found = field.Tag.Lookup("conf_default")
			if !found {
				continue
			}
		}

		switch fieldVal.Kind() {
		case reflect.String:
			fieldVal.SetString(raw)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return err
			}
			fieldVal.SetInt(n)
		case reflect.Bool:
			b, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return err
			}
			fieldVal.SetBool(b)
		}
	}
	return nil
}
