/*
 * Copyright 2022 Xiongfa Li.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package reflection

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	nreflection "github.com/xfali/neve-utils/reflection"
)

var durationType = reflect.TypeOf(time.Duration(0))

// GetClassName 返回类型的全限定名称（不带指针前缀），例如 github.com.acme.app.UserService
func GetClassName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return QualifiedName(t.PkgPath(), t.Name(), t.String())
}

// QualifiedName 由包路径和类型名组成类名，源码解析和反射两种方式都使用该规则
func QualifiedName(pkgPath, name, fallback string) string {
	if name == "" {
		return fallback
	}
	if pkgPath == "" {
		return name
	}
	return strings.Replace(pkgPath, "/", ".", -1) + "." + name
}

// SimpleName 返回类名的最后一段
func SimpleName(className string) string {
	if i := strings.LastIndex(className, "."); i >= 0 {
		return className[i+1:]
	}
	return className
}

// Decapitalize 按java beans规则转换首字母：UserService -> userService，URL保持不变
func Decapitalize(name string) string {
	if name == "" {
		return name
	}
	first, size := utf8.DecodeRuneInString(name)
	if len(name) > size {
		second, _ := utf8.DecodeRuneInString(name[size:])
		if unicode.IsUpper(first) && unicode.IsUpper(second) {
			return name
		}
	}
	return string(unicode.ToLower(first)) + name[size:]
}

func Capitalize(name string) string {
	if name == "" {
		return name
	}
	first, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(first)) + name[size:]
}

// ConvertString 将字符串转换为目标类型的值
func ConvertString(s string, t reflect.Type) (reflect.Value, error) {
	if t == durationType {
		d, err := time.ParseDuration(s)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(d), nil
	}
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return v, err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := strconv.ParseUint(s, 10, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetUint(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetFloat(f)
	case reflect.Interface:
		if reflect.TypeOf(s).AssignableTo(t) {
			v.Set(reflect.ValueOf(s))
			return v, nil
		}
		return v, fmt.Errorf("cannot assign string to %s", t.String())
	default:
		return v, fmt.Errorf("cannot convert string to %s", nreflection.GetTypeName(t))
	}
	return v, nil
}

// AssignableValue 将o转换为可赋值给t的值，字符串按ConvertString转换
func AssignableValue(o interface{}, t reflect.Type) (reflect.Value, error) {
	if o == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(o)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if s, ok := o.(string); ok {
		return ConvertString(s, t)
	}
	if v.Type().ConvertibleTo(t) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("type %s is not assignable to %s", nreflection.GetTypeName(v.Type()), nreflection.GetTypeName(t))
}
