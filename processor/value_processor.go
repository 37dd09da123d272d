// Copyright (C) 2019-2020, Xiongfa Li.
// @author xiongfa.li
// @version V1.0
// Description:

package processor

import (
	"reflect"

	"github.com/pkg/errors"
	"github.com/xfali/fig"
	"github.com/xfali/neve-context/bean"
)

// ValueProcessor 在bean初始化之前使用配置填充带有fig tag的字段，例如：
//
//	Port int `fig:"server.port"`
type ValueProcessor struct {
	conf      fig.Properties
	tagPxName string
	tagName   string
}

type Opt func(processor *ValueProcessor)

func OptSetValueTag(tagPxName, tagName string) Opt {
	return func(processor *ValueProcessor) {
		if tagName != "" {
			if tagPxName == "" {
				tagPxName = fig.TagPrefixName
			}
			processor.tagName = tagName
			processor.tagPxName = tagPxName
		}
	}
}

func NewValueProcessor(conf fig.Properties, opts ...Opt) *ValueProcessor {
	ret := &ValueProcessor{
		conf: conf,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// PostProcessFactory 将自身注册为bean处理器
func (p *ValueProcessor) PostProcessFactory(factory *bean.Factory) error {
	factory.AddPostProcessor(p)
	return nil
}

func (p *ValueProcessor) BeforeInitialization(o interface{}, name string) (interface{}, error) {
	if p.conf == nil || !isStructPtr(o) {
		return o, nil
	}
	var err error
	if p.tagName == "" {
		err = fig.Fill(p.conf, o)
	} else {
		err = fig.FillExWithTagName(p.conf, o, false, p.tagPxName, p.tagName)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fill values of bean '%s'", name)
	}
	return o, nil
}

func (p *ValueProcessor) AfterInitialization(o interface{}, name string) (interface{}, error) {
	return o, nil
}

func isStructPtr(o interface{}) bool {
	v := reflect.ValueOf(o)
	return v.Kind() == reflect.Ptr && !v.IsNil() && v.Elem().Kind() == reflect.Struct
}
