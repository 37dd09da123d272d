/*
 * Copyright (C) 2024, Xiongfa Li.
 * All rights reserved.
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

package env

import (
	"fmt"
	"strings"

	"github.com/xfali/neve-context/errors"
)

const (
	PlaceholderPrefix    = "${"
	PlaceholderSuffix    = "}"
	PlaceholderSeparator = ":"
)

type PlaceholderResolver func(key string) (string, bool)

// ReplacePlaceholders 替换text中的 ${name:default} 占位符，支持嵌套 ${a:${b:c}}。
// ignoreUnresolvable为true时保留无法解析的占位符，否则返回错误；循环引用总是返回错误。
func ReplacePlaceholders(text string, resolver PlaceholderResolver, ignoreUnresolvable bool) (string, error) {
	if !strings.Contains(text, PlaceholderPrefix) {
		return text, nil
	}
	p := &placeholderParser{
		resolver:           resolver,
		ignoreUnresolvable: ignoreUnresolvable,
	}
	return p.parse(text, map[string]bool{})
}

type placeholderParser struct {
	resolver           PlaceholderResolver
	ignoreUnresolvable bool
}

func (p *placeholderParser) parse(value string, visiting map[string]bool) (string, error) {
	start := strings.Index(value, PlaceholderPrefix)
	if start < 0 {
		return value, nil
	}
	buf := value
	for start >= 0 {
		end := findPlaceholderEnd(buf, start)
		if end < 0 {
			break
		}
		original := buf[start+len(PlaceholderPrefix) : end]
		if visiting[original] {
			return "", errors.UnresolvableReference(fmt.Sprintf("circular placeholder reference '%s'", original), "", nil)
		}
		visiting[original] = true

		key, err := p.parse(original, visiting)
		if err != nil {
			return "", err
		}
		v, ok := p.resolver(key)
		if !ok {
			if i := strings.Index(key, PlaceholderSeparator); i >= 0 {
				v, ok = p.resolver(key[:i])
				if !ok {
					v, ok = key[i+len(PlaceholderSeparator):], true
				}
			}
		}
		if ok {
			v, err = p.parse(v, visiting)
			if err != nil {
				return "", err
			}
			buf = buf[:start] + v + buf[end+len(PlaceholderSuffix):]
			start = indexFrom(buf, PlaceholderPrefix, start+len(v))
		} else if p.ignoreUnresolvable {
			start = indexFrom(buf, PlaceholderPrefix, end+len(PlaceholderSuffix))
		} else {
			return "", errors.UnresolvableReference(fmt.Sprintf("placeholder '%s' in value \"%s\"", key, value), "", nil)
		}
		delete(visiting, original)
	}
	return buf, nil
}

func findPlaceholderEnd(buf string, start int) int {
	index := start + len(PlaceholderPrefix)
	nested := 0
	for index < len(buf) {
		if strings.HasPrefix(buf[index:], PlaceholderSuffix) {
			if nested == 0 {
				return index
			}
			nested--
			index += len(PlaceholderSuffix)
		} else if strings.HasPrefix(buf[index:], PlaceholderPrefix) {
			nested++
			index += len(PlaceholderPrefix)
		} else {
			index++
		}
	}
	return -1
}

func indexFrom(s, sub string, from int) int {
	if from >= len(s) {
		return -1
	}
	i := strings.Index(s[from:], sub)
	if i < 0 {
		return -1
	}
	return i + from
}
