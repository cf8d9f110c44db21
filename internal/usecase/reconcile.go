package usecase

import "phigrate-web/internal/domain"

// Merge はディスク上のマイグレーションとDBの適用済みバージョンを照合する。
//
// ファイルとDBの両方にあるIDは InDB、ファイルのみは NotInDB、
// DBのみのIDは NoFile として合成した要素を追加する。
// 全件が InDB の場合のみコレクションは UpToDate になる。
// 引数は変更せず、呼び出しごとに新しいコレクションを返す。
func Merge(directory string, files []*domain.Migration, versions []string) *domain.Collection {
	collection := domain.NewCollection(directory)
	for _, f := range files {
		collection.Add(f.Clone())
	}

	remaining := make(map[string]int, len(versions))
	for _, v := range versions {
		remaining[v]++
	}

	upToDate := true
	for _, id := range collection.IDs() {
		m, _ := collection.Get(id)
		if remaining[id] > 0 {
			m.Status = domain.MigrationStatusInDB
			delete(remaining, id)
		} else {
			m.Status = domain.MigrationStatusNotInDB
			upToDate = false
		}
	}

	// DBにのみ存在するバージョン（versionsの順序を維持して追加）
	for _, v := range versions {
		if _, ok := remaining[v]; !ok {
			continue
		}
		delete(remaining, v)
		collection.Add(&domain.Migration{ID: v, Status: domain.MigrationStatusNoFile})
		upToDate = false
	}

	if upToDate {
		collection.Status = domain.CollectionStatusUpToDate
	}
	return collection
}
