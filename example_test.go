package kizuna

import "fmt"

type levelLoaded struct {
	Name string
}

func ExamplePublish() {
	bus := &EventBus{}
	Subscribe(bus, func(e levelLoaded) { fmt.Println("first:", e.Name) })
	Subscribe(bus, func(e levelLoaded) { fmt.Println("second:", e.Name) })
	Publish(bus, levelLoaded{Name: "harbor"})
	Publish[levelLoaded](nil, levelLoaded{Name: "dropped"})
	// Output:
	// first: harbor
	// second: harbor
}

func ExampleGetResource() {
	r := &Resources{}
	bank := &audioBank{}
	owner := Adopt(bank)
	r.MustAdd(bank)

	ref, id := GetResource[*audioBank](r)
	fmt.Println(id, ref.ReferenceCount())
	ref.Release()

	RemoveResource[*audioBank](r)
	owner.Release()
	fmt.Println(bank.destroyed)
	// Output:
	// 0 3
	// 1
}
