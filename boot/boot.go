/*
 * Copyright (C) 2022, Xiongfa Li.
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

package boot

import (
	"flag"
	"sync"

	"github.com/xfali/neve-context"
	"github.com/xfali/neve-context/appcontext"
	"github.com/xfali/xlog"
)

var (
	// 默认的配置路径
	ConfigPath = "application.yaml"

	creator func() neve.Application = defaultCreator
	gApp    neve.Application
	once    sync.Once
)

// 注册到全局Application
// 注册对象，对象类型通过反射读取注解生成定义，名称为注解指定的名称或首字母小写的类型名称
// 必须在Run之前调用
func RegisterBean(o interface{}) error {
	return instance().RegisterBean(o)
}

// 自定义启动的Application
// 必须在注册对象和Run之前调用
func Customize(app neve.Application) {
	creator = func() neve.Application {
		return app
	}
}

func defaultCreator() neve.Application {
	if !flag.Parsed() {
		flag.StringVar(&ConfigPath, "f", ConfigPath, "Application configuration file path.")
		flag.Parse()
	}
	app, err := neve.NewFileConfigApplication(ConfigPath)
	if err != nil {
		xlog.GetLogger().Fatalln("load config file failed: ", err)
	}
	return app
}

func instance() neve.Application {
	once.Do(func() {
		gApp = creator()
	})
	return gApp
}

// 全局Application的context
func Context() appcontext.ConfigurableContext {
	return instance().Context()
}

// 启动全局Application，阻塞直到收到退出信号
func Run() error {
	return instance().Run()
}

// 关闭全局Application
func Close() error {
	return instance().Close()
}
