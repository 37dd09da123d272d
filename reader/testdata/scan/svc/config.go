package svc

import "time"

type AppConfig struct {
	_ struct{} `neve:"@Configuration"`
}

//neve:@Bean(name="clock, systemClock", scope=prototype)
func (c *AppConfig) Clock() *Clock {
	return &Clock{}
}

//neve:@Bean
func (c *AppConfig) Timer() *time.Timer {
	return time.NewTimer(time.Second)
}

func (c *AppConfig) Helper() {}

type Clock struct{}
