package seeder

func Defaults() []Seeder {
	return []Seeder{
		DemoLocationsSeeder{},
	}
}
