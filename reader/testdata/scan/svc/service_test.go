package svc

type ignored struct {
	_ struct{} `neve:"@Component(ignored)"`
}
